package storage

import "github.com/MarcoPoloResearchLab/notebook/internal/pubsub"

const subscriberBuffer = 64

func newChangeDispatcher() *pubsub.Dispatcher[Change] {
	return pubsub.NewDispatcher[Change](subscriberBuffer)
}

// keyFilter accepts changes to the listed keys, or to any key when none are
// listed. Changes without a key are never delivered.
func keyFilter(keys []string) func(Change) bool {
	var wanted map[string]struct{}
	if len(keys) > 0 {
		wanted = make(map[string]struct{}, len(keys))
		for _, key := range keys {
			wanted[key] = struct{}{}
		}
	}
	return func(change Change) bool {
		if change.Key == "" {
			return false
		}
		if wanted == nil {
			return true
		}
		_, ok := wanted[change.Key]
		return ok
	}
}
