package schedule

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"reservo/internal/model"
)

// Loader de-duplicates concurrent settings loads of the same business.
type Loader struct {
	store Store
	group singleflight.Group
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// Settings returns the settings of a business. Concurrent callers share one
// store round trip; the returned value must be treated as read-only.
func (l *Loader) Settings(ctx context.Context, businessID int64) (*model.Settings, error) {
	v, err, _ := l.group.Do(strconv.FormatInt(businessID, 10), func() (interface{}, error) {
		return l.store.GetSettings(ctx, businessID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Settings), nil
}

// Forget drops an in-flight load so the next call reads fresh data.
func (l *Loader) Forget(businessID int64) {
	l.group.Forget(strconv.FormatInt(businessID, 10))
}
