package plugin

// Phase names a single step in the get or set pipeline, per the
// GLOSSARY. The orchestrator advertises the current phase to plugins via
// the shared global KeySet (global.PhaseKey) rather than as a call
// argument, so that a plugin's Get/Set/Commit/Error methods keep the
// uniform two-argument shape the original's entry points have.
type Phase string

const (
	PhaseInit         Phase = "init"
	PhaseResolver     Phase = "resolver"
	PhaseCacheCheck   Phase = "cachecheck"
	PhasePreStorage   Phase = "prestorage"
	PhaseStorage      Phase = "storage"
	PhasePostStorage  Phase = "poststorage"
	PhasePreCommit    Phase = "precommit"
	PhaseCommit       Phase = "commit"
	PhasePostCommit   Phase = "postcommit"
	PhasePreRollback  Phase = "prerollback"
	PhaseRollback     Phase = "rollback"
	PhasePostRollback Phase = "postrollback"
)
