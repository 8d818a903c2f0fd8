// Package taxonomy holds the fixed topic vocabulary: treaty articles and the
// key elements each article covers.
package taxonomy

import "sync"

type Article struct {
	Number      string   `json:"article"`
	Title       string   `json:"name"`
	KeyElements []string `json:"key_element"`
}

var (
	indexOnce sync.Once
	byElement map[string]string
)

func index() {
	indexOnce.Do(func() {
		byElement = make(map[string]string)
		for _, article := range articles {
			for _, element := range article.KeyElements {
				byElement[element] = article.Number
			}
		}
	})
}

// Articles returns a copy of the article list in treaty order.
func Articles() []Article {
	out := make([]Article, len(articles))
	for i, article := range articles {
		out[i] = Article{
			Number:      article.Number,
			Title:       article.Title,
			KeyElements: append([]string(nil), article.KeyElements...),
		}
	}
	return out
}

func KeyElements() []string {
	var out []string
	for _, article := range articles {
		out = append(out, article.KeyElements...)
	}
	return out
}

func IsKeyElement(value string) bool {
	index()
	_, ok := byElement[value]
	return ok
}

// ArticleOf reports the article a key element belongs to.
func ArticleOf(value string) (string, bool) {
	index()
	number, ok := byElement[value]
	return number, ok
}

// Validate returns the values that are not part of the vocabulary, in input
// order.
func Validate(values []string) []string {
	var unknown []string
	for _, value := range values {
		if !IsKeyElement(value) {
			unknown = append(unknown, value)
		}
	}
	return unknown
}
