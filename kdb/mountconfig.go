package kdb

import (
	"fmt"
	"strings"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// mountSpec is one parsed entry under system:/elektra/mountpoints: the
// real mountpoint key plus its configuration, re-rooted to a
// plugin-relative cascading KeySet so it can be read with the same
// "/backend", "/plugins/#N/name" style lookups a hand-authored
// definition would use.
type mountSpec struct {
	mountpoint *key.Key
	local      *keyset.KeySet
}

func rootCascading() *key.Key {
	k, err := key.NewCascading("/")
	if err != nil {
		panic(err)
	}
	return k
}

// relative re-roots every key of ks below prefix (a cascading path such
// as "/plugins/#0/config" or "/definition", or a namespaced name such as
// a mountpoint group under system:/elektra/mountpoints) to the cascading
// root, dropping the prefix itself.
func relative(ks *keyset.KeySet, prefix string) *keyset.KeySet {
	var prefixKey *key.Key
	var err error
	if strings.HasPrefix(prefix, "/") {
		prefixKey, err = key.NewCascading(prefix)
	} else {
		prefixKey, err = key.New(prefix)
	}
	if err != nil {
		panic(err)
	}

	below := ks.Below(prefixKey)
	return keyset.Rename(below, prefixKey, rootCascading())
}

// parseMountpoints groups mountKS's keys under system:/elektra/mountpoints
// by their first segment below that root, one group per mountpoint
// (spec §4.1 step 5, §6 "mount configuration format").
func parseMountpoints(mountKS *keyset.KeySet) ([]mountSpec, error) {
	root := key.MustNew("system:/elektra/mountpoints")
	rootDepth := len(root.Segments())

	groups := make(map[string][]*key.Key)
	var order []string

	for _, k := range mountKS.List() {
		if !k.IsBelow(root) {
			continue
		}

		segs := k.Segments()
		if len(segs) <= rootDepth {
			continue
		}

		name := segs[rootDepth]
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], k)
	}

	specs := make([]mountSpec, 0, len(order))

	for _, name := range order {
		mountpoint, err := key.New(name)
		if err != nil {
			return nil, fmt.Errorf("kdb: mountpoint group %q is not a valid key name: %w", name, err)
		}

		group := root.Child(name)
		local := relative(mountKS, group.Name())

		specs = append(specs, mountSpec{mountpoint: mountpoint, local: local})
	}

	return specs, nil
}

// pluginList reads the ordered "/plugins/#N/{name,config/...}" entries
// out of local, opening each one against reg.
func pluginList(reg *plugin.Registry, local *keyset.KeySet, global *keyset.KeySet, parentKey *key.Key) ([]plugin.Plugin, error) {
	var out []plugin.Plugin

	for n := 0; ; n++ {
		nameKey := local.Lookup(fmt.Sprintf("/plugins/%s/name", key.ArrayIndex(n)))
		if nameKey == nil {
			break
		}

		name := nameKey.ValueString()

		p, err := reg.New(name)
		if err != nil {
			return nil, fmt.Errorf("kdb: mountpoint references unknown plugin %q: %w", name, err)
		}

		config := relative(local, fmt.Sprintf("/plugins/%s/config", key.ArrayIndex(n)))

		if err := p.Open(config, global, parentKey); err != nil {
			return nil, fmt.Errorf("kdb: plugin %q failed to open: %w", name, err)
		}

		out = append(out, p)
	}

	return out, nil
}
