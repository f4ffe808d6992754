package key

// Namespace discriminates the top-level domain of a Key name.
type Namespace string

const (
	Spec      Namespace = "spec"
	Proc      Namespace = "proc"
	Dir       Namespace = "dir"
	User      Namespace = "user"
	System    Namespace = "system"
	Default   Namespace = "default"
	Meta      Namespace = "meta"
	Cascading Namespace = ""
)

// rank gives the canonical total order across namespaces used by Compare.
// It has nothing to do with cascading resolution order.
var rank = map[Namespace]int{
	Cascading: -1,
	Spec:      0,
	Proc:      1,
	Dir:       2,
	User:      3,
	System:    4,
	Default:   5,
	Meta:      6,
}

func (ns Namespace) valid() bool {
	_, ok := rank[ns]
	return ok || ns == Cascading
}

// CascadingOrder is the order in which namespaces are searched for a
// cascading lookup (a name beginning with "/").
var CascadingOrder = []Namespace{Proc, Dir, User, System, Spec, Default}
