package config

import "sort"

// TTLFor returns the cache TTL in seconds for one (tool, capability),
// falling back to the default policy.
func (c *Config) TTLFor(tool, capability string) int {
	if caps, ok := c.Cache.TTL.ByTool[tool]; ok {
		if ttl, ok := caps[capability]; ok {
			return ttl
		}
	}
	return c.Cache.TTL.Default
}

// ThresholdFor returns the cross-check divergence tolerance in percent for
// a field, falling back to the default.
func (c *Config) ThresholdFor(field string) float64 {
	if t, ok := c.Conflict.Thresholds[field]; ok {
		return t
	}
	return c.Conflict.DefaultThreshold
}

// ChainFor returns the ordered source names configured for one
// (tool, capability). Nil when no chain is configured.
func (c *Config) ChainFor(tool, capability string) []string {
	caps, ok := c.Chains[tool]
	if !ok {
		return nil
	}
	return caps[capability]
}

// ToolEnabled reports whether a tool is switched on. Tools absent from the
// config are off.
func (c *Config) ToolEnabled(name string) bool {
	t, ok := c.Tools[name]
	return ok && t.Enabled
}

// SourceNames returns the declared source names, sorted.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
