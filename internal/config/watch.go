package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"reflect"
	"time"
)

// WatchBusinesses applies businesses.yaml through onUpdate and keeps polling
// the file until ctx is done. The first call carries every business; later
// calls carry only the businesses whose identity, hours, policy or holidays
// changed. Reloads follow the file content, so rewriting identical bytes does
// nothing. A file that fails to parse is skipped until it changes again.
func WatchBusinesses(ctx context.Context, path string, interval time.Duration, onUpdate func(*BusinessesConfig)) error {
	if path == "" {
		path = "configs/businesses.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read businesses config: %w", err)
	}
	current, err := parseBusinessesConfig(data)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(current)
	}
	lastSum := sha256.Sum256(data)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				data, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				sum := sha256.Sum256(data)
				if sum == lastSum {
					continue
				}
				lastSum = sum

				next, err := parseBusinessesConfig(data)
				if err != nil {
					continue
				}
				delta := ChangedBusinesses(current, next)
				current = next
				if delta != nil && onUpdate != nil {
					onUpdate(delta)
				}
			}
		}
	}()

	return nil
}

// ChangedBusinesses returns next restricted to the businesses that are new
// or differ from prev, including businesses whose applicable holidays
// changed. It returns nil when no business changed. Businesses removed from
// the file are not reported; their stored data stays as it is.
func ChangedBusinesses(prev, next *BusinessesConfig) *BusinessesConfig {
	if prev == nil {
		return next
	}
	before := make(map[int64]BusinessConfig, len(prev.Businesses))
	for _, b := range prev.Businesses {
		before[b.ID] = b
	}

	var changed []BusinessConfig
	for _, b := range next.Businesses {
		old, ok := before[b.ID]
		if ok && reflect.DeepEqual(old, b) && reflect.DeepEqual(prev.HolidaysFor(b.ID), next.HolidaysFor(b.ID)) {
			continue
		}
		changed = append(changed, b)
	}
	if len(changed) == 0 {
		return nil
	}

	out := *next
	out.Businesses = changed
	return &out
}
