package verification

import (
	mapset "github.com/deckarep/golang-set/v2"

	"negotiate/api/internal/store"
)

// FoldKeyElements groups the key elements of topics by article. Within an
// article elements keep the order they were first seen and appear once. An
// article whose topics carry no elements still maps to an empty list. The
// result is nil when there are no topics.
func FoldKeyElements(topics []store.Topic) map[string][]string {
	if len(topics) == 0 {
		return nil
	}
	out := make(map[string][]string)
	seen := make(map[string]mapset.Set[string])
	for _, topic := range topics {
		if _, ok := out[topic.Article]; !ok {
			out[topic.Article] = []string{}
			seen[topic.Article] = mapset.NewThreadUnsafeSet[string]()
		}
		for _, element := range topic.KeyElement {
			if seen[topic.Article].Add(element) {
				out[topic.Article] = append(out[topic.Article], element)
			}
		}
	}
	return out
}
