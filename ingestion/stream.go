package ingestion

import (
	"fmt"
	"iter"
)

// DefaultProgressEvery is how many items pass a stage between progress events.
const DefaultProgressEvery = 10

// observe wraps seq so that every item passing through increments *count,
// and every `every` items fires observer.OnProgress. Errors pass through
// uncounted.
func observe[T any](seq iter.Seq2[T, error], stage Stage, every int, observer Observer, count *int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			if err == nil {
				*count++
				if every > 0 && *count%every == 0 {
					observer.OnProgress(stage, *count, fmt.Sprintf("Processed %d items...", *count))
				}
			}
			if !yield(item, err) {
				return
			}
		}
	}
}
