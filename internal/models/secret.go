package models

// Kind tells the reader how Content is to be interpreted.
type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

func (k Kind) Valid() bool {
	return k == KindText || k == KindFile
}

type Secret struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Kind    Kind   `json:"type"`
}
