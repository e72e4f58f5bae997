package config

import "fmt"

// Validate checks cross-field consistency that tag-level defaults cannot express.
func (c *Config) Validate() error {
	if c.Fields.CacheTTL <= 0 {
		return fmt.Errorf("fields.cache_ttl must be positive, got %s", c.Fields.CacheTTL)
	}
	if c.Segments.PreviewLimit <= 0 {
		return fmt.Errorf("segments.preview_limit must be positive, got %d", c.Segments.PreviewLimit)
	}
	if c.Segments.PreviewMaxLimit < c.Segments.PreviewLimit {
		return fmt.Errorf("segments.preview_max_limit (%d) must be >= preview_limit (%d)",
			c.Segments.PreviewMaxLimit, c.Segments.PreviewLimit)
	}
	if c.Cleanup.FieldConcurrency <= 0 {
		return fmt.Errorf("cleanup.field_concurrency must be positive, got %d", c.Cleanup.FieldConcurrency)
	}
	return nil
}
