package topology

import (
	"fmt"

	"github.com/ovis-hpc/maestro/internal/errs"
	"github.com/ovis-hpc/maestro/internal/logging"
	"github.com/ovis-hpc/maestro/internal/nameexpand"
)

// Build validates and cross-expands a generic description tree (as
// produced by the out-of-scope document reader, e.g. a YAML document
// decoded into nested map[string]interface{}/[]interface{}/scalars)
// into a DesiredState.
func Build(tree map[string]interface{}) (*DesiredState, error) {
	ds := newDesiredState()

	hostSpecs, err := sliceOf(tree, "hosts")
	if err != nil {
		return nil, err
	}
	for _, raw := range hostSpecs {
		if err := expandHostSection(ds, raw); err != nil {
			return nil, err
		}
	}

	aggSpecs, err := sliceOf(tree, "aggregators")
	if err != nil {
		return nil, err
	}
	for _, raw := range aggSpecs {
		if err := expandAggregatorSection(ds, raw); err != nil {
			return nil, err
		}
	}

	samplerSpecs, err := sliceOf(tree, "samplers")
	if err != nil {
		return nil, err
	}
	for _, raw := range samplerSpecs {
		if err := expandSamplerSection(ds, raw); err != nil {
			return nil, err
		}
	}

	prdcrSpecs, err := sliceOf(tree, "producers")
	if err != nil {
		return nil, err
	}
	for _, raw := range prdcrSpecs {
		if err := expandProducerSection(ds, raw); err != nil {
			return nil, err
		}
	}

	updtrSpecs, err := sliceOf(tree, "updaters")
	if err != nil {
		return nil, err
	}
	for _, raw := range updtrSpecs {
		if err := expandUpdaterSection(ds, raw); err != nil {
			return nil, err
		}
	}

	storeSpecs, err := sliceOf(tree, "stores")
	if err != nil {
		return nil, err
	}
	for _, raw := range storeSpecs {
		if err := expandStoreSection(ds, raw); err != nil {
			return nil, err
		}
	}

	dropDanglingProducers(ds)

	return ds, nil
}

func expandHostSection(ds *DesiredState, raw interface{}) error {
	const section = "hosts"
	m, err := asMap(raw, section)
	if err != nil {
		return err
	}
	namesSpec, err := requireString(m, section, "names")
	if err != nil {
		return err
	}
	hostsSpec, err := requireString(m, section, "hosts")
	if err != nil {
		return err
	}
	portsSpec, err := requireString(m, section, "ports")
	if err != nil {
		return err
	}
	names, err := nameexpand.Expand(namesSpec)
	if err != nil {
		return err
	}
	addrs, err := nameexpand.Expand(hostsSpec)
	if err != nil {
		return err
	}
	ports, err := nameexpand.Expand(portsSpec)
	if err != nil {
		return err
	}
	if len(names) != len(addrs)*len(ports) {
		return &errs.ArityMismatch{Section: section, Detail: fmt.Sprintf(
			"len(names)=%d != len(hosts)=%d * len(ports)=%d", len(names), len(addrs), len(ports))}
	}

	xprt := optionalString(m, "xprt", "sock")
	auth := parseAuth(m)

	idx := 0
	// row-major: host outer, port inner.
	for _, addr := range addrs {
		for _, portStr := range ports {
			port, err := parsePort(portStr)
			if err != nil {
				return err
			}
			name := names[idx]
			idx++
			if _, dup := ds.Hosts[name]; dup {
				return &errs.DuplicateName{Section: section, Group: "", Name: name}
			}
			ds.Hosts[name] = &Host{
				Name: name,
				Addr: addr,
				Port: port,
				Xprt: xprt,
				Auth: auth,
			}
		}
	}
	return nil
}

func parsePort(s string) (int, error) {
	var p int
	if _, err := fmt.Sscanf(s, "%d", &p); err != nil {
		return 0, &errs.InvalidSpec{Spec: s, Reason: "non-numeric port"}
	}
	return p, nil
}

func parseAuth(m map[string]interface{}) Auth {
	raw, ok := m["auth"]
	if !ok {
		return Auth{Name: "none"}
	}
	am, ok := raw.(map[string]interface{})
	if !ok {
		return Auth{Name: "none"}
	}
	cfg := map[string]string{}
	if cfgRaw, ok := am["config"].(map[string]interface{}); ok {
		for k, v := range cfgRaw {
			cfg[k] = toString(v)
		}
	}
	return Auth{Name: optionalString(am, "name", "none"), Config: cfg}
}

func expandAggregatorSection(ds *DesiredState, raw interface{}) error {
	const section = "aggregators"
	m, err := asMap(raw, section)
	if err != nil {
		return err
	}
	namesSpec, err := requireString(m, section, "names")
	if err != nil {
		return err
	}
	group, err := requireString(m, section, "group")
	if err != nil {
		return err
	}
	hostsSpec, err := requireString(m, section, "hosts")
	if err != nil {
		return err
	}
	names, err := nameexpand.Expand(namesSpec)
	if err != nil {
		return err
	}
	hostNames, err := nameexpand.Expand(hostsSpec)
	if err != nil {
		return err
	}
	if len(names) != len(hostNames) {
		return &errs.ArityMismatch{Section: section, Detail: fmt.Sprintf(
			"len(names)=%d != len(hosts)=%d", len(names), len(hostNames))}
	}

	grp, ok := ds.AggregatorsByGroup[group]
	if !ok {
		grp = &AggregatorGroup{Group: group}
		ds.AggregatorsByGroup[group] = grp
	}
	seen := map[string]struct{}{}
	for _, a := range grp.Aggregators {
		seen[a.Name] = struct{}{}
	}
	for i, name := range names {
		if _, dup := seen[name]; dup {
			return &errs.DuplicateName{Section: section, Group: group, Name: name}
		}
		seen[name] = struct{}{}
		grp.Aggregators = append(grp.Aggregators, &Aggregator{
			Name:  name,
			Host:  hostNames[i],
			State: StateStopped,
		})
	}
	return nil
}

func expandSamplerSection(ds *DesiredState, raw interface{}) error {
	const section = "samplers"
	m, err := asMap(raw, section)
	if err != nil {
		return err
	}
	namesSpec, err := requireString(m, section, "names")
	if err != nil {
		return err
	}
	spec := &SamplerSpec{NamesSpec: namesSpec}
	pluginsRaw, _ := m["plugins"].([]interface{})
	for _, pRaw := range pluginsRaw {
		pm, ok := pRaw.(map[string]interface{})
		if !ok {
			continue
		}
		name, err := requireString(pm, section, "name")
		if err != nil {
			return err
		}
		plugin := PluginConfig{
			Name:     name,
			Interval: optionalString(pm, "interval", "1.0s:0ms"),
			Params:   map[string]string{},
		}
		for k, v := range pm {
			if k == "name" || k == "interval" {
				continue
			}
			plugin.Params[k] = toString(v)
		}
		spec.Plugins = append(spec.Plugins, plugin)
	}
	// duplicate keys silently overwrite: open question resolved in
	// SPEC_FULL.md by keeping the source's ambiguous behavior.
	ds.SamplersByKey[namesSpec] = spec
	return nil
}

func expandProducerSection(ds *DesiredState, raw interface{}) error {
	const section = "producers"
	m, err := asMap(raw, section)
	if err != nil {
		return err
	}
	namesSpec, err := requireString(m, section, "names")
	if err != nil {
		return err
	}
	hostsSpec, err := requireString(m, section, "hosts")
	if err != nil {
		return err
	}
	if _, err := requireString(m, section, "reconnect"); err != nil {
		return err
	}
	reconnect := m["reconnect"].(string)
	typeStr, err := requireString(m, section, "type")
	if err != nil {
		return err
	}
	group, err := requireString(m, section, "group")
	if err != nil {
		return err
	}
	if _, ok := m["updaters"]; !ok {
		return &errs.MissingAttribute{Section: section, Key: "updaters"}
	}
	updaters := stringSlice(m["updaters"])
	xprt := optionalString(m, "xprt", "")

	names, err := nameexpand.Expand(namesSpec)
	if err != nil {
		return err
	}
	hostNames, err := nameexpand.Expand(hostsSpec)
	if err != nil {
		return err
	}
	if len(names) != len(hostNames) {
		return &errs.ArityMismatch{Section: section, Detail: fmt.Sprintf(
			"len(names)=%d != len(hosts)=%d", len(names), len(hostNames))}
	}

	for i, name := range names {
		ds.ProducersByGroup[group] = append(ds.ProducersByGroup[group], &Producer{
			Name:      name,
			Host:      hostNames[i],
			Group:     group,
			Type:      ProducerType(typeStr),
			Xprt:      xprt,
			Reconnect: reconnect,
			Updaters:  updaters,
		})
	}
	return nil
}

func expandUpdaterSection(ds *DesiredState, raw interface{}) error {
	const section = "updaters"
	m, err := asMap(raw, section)
	if err != nil {
		return err
	}
	name, err := requireString(m, section, "name")
	if err != nil {
		return err
	}
	group, err := requireString(m, section, "group")
	if err != nil {
		return err
	}
	interval, err := requireString(m, section, "interval")
	if err != nil {
		return err
	}
	if _, ok := m["sets"]; !ok {
		return &errs.MissingAttribute{Section: section, Key: "sets"}
	}
	if _, ok := m["producers"]; !ok {
		return &errs.MissingAttribute{Section: section, Key: "producers"}
	}

	for _, u := range ds.UpdatersByGroup[group] {
		if u.Name == name {
			return &errs.DuplicateName{Section: section, Group: group, Name: name}
		}
	}

	auto, _ := m["auto"].(string)
	push, _ := m["push"].(string)
	if auto != "" && push != "" {
		return &errs.ConflictingMode{Group: group, Updater: name}
	}

	upd := &Updater{Name: name, Group: group, Interval: interval, Auto: auto, Push: push}
	for _, s := range asMapSlice(m["sets"]) {
		upd.Sets = append(upd.Sets, MatchRule{
			Regex: optionalString(s, "regex", ""),
			Field: optionalString(s, "field", ""),
		})
	}
	for _, p := range asMapSlice(m["producers"]) {
		upd.Producers = append(upd.Producers, ProducerMatch{
			Regex: optionalString(p, "regex", ""),
		})
	}
	ds.UpdatersByGroup[group] = append(ds.UpdatersByGroup[group], upd)
	return nil
}

func expandStoreSection(ds *DesiredState, raw interface{}) error {
	const section = "stores"
	m, err := asMap(raw, section)
	if err != nil {
		return err
	}
	name, err := requireString(m, section, "name")
	if err != nil {
		return err
	}
	group, err := requireString(m, section, "group")
	if err != nil {
		return err
	}
	container, err := requireString(m, section, "container")
	if err != nil {
		return err
	}
	schema, err := requireString(m, section, "schema")
	if err != nil {
		return err
	}
	pluginRaw, ok := m["plugin"]
	if !ok {
		return &errs.MissingAttribute{Section: section, Key: "plugin"}
	}
	pm, ok := pluginRaw.(map[string]interface{})
	if !ok {
		return &errs.MissingAttribute{Section: section, Key: "plugin"}
	}
	pluginName, err := requireString(pm, section, "name")
	if err != nil {
		return err
	}
	if _, ok := pm["config"]; !ok {
		return &errs.MissingAttribute{Section: section, Key: "plugin.config"}
	}
	cfg := map[string]string{}
	if cfgRaw, ok := pm["config"].(map[string]interface{}); ok {
		for k, v := range cfgRaw {
			cfg[k] = toString(v)
		}
	}

	for _, s := range ds.StoresByGroup[group] {
		if s.Name == name {
			return &errs.DuplicateName{Section: section, Group: group, Name: name}
		}
	}

	ds.StoresByGroup[group] = append(ds.StoresByGroup[group], &Store{
		Name:       name,
		Group:      group,
		Container:  container,
		Schema:     schema,
		PluginName: pluginName,
		Plugin:     cfg,
	})
	return nil
}

// dropDanglingProducers logs a warning for each producer group that has
// no matching aggregator group. The producers stay in ProducersByGroup;
// the reconciler skips groups without an aggregator group, so they are
// never dispatched.
func dropDanglingProducers(ds *DesiredState) {
	for group, producers := range ds.ProducersByGroup {
		if _, ok := ds.AggregatorsByGroup[group]; !ok {
			logging.Sugar().Warnw("producer group has no matching aggregator group; producers will never be dispatched",
				"group", group, "count", len(producers))
		}
	}
}
