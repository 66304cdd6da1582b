package dataset

// unknownLabel replaces missing values before encoding.
const unknownLabel = "Unknown"

// LabelEncoder maps category values to integer labels in first-seen order.
// A value keeps its label for the lifetime of the encoder, so every chunk
// of a file is encoded consistently.
type LabelEncoder struct {
	labels map[string]int
	values []string
}

func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{labels: make(map[string]int)}
}

// Encode returns the label of value, assigning the next free one if unseen.
// An empty value is encoded as "Unknown".
func (e *LabelEncoder) Encode(value string) int {
	if value == "" {
		value = unknownLabel
	}
	if label, ok := e.labels[value]; ok {
		return label
	}
	label := len(e.values)
	e.labels[value] = label
	e.values = append(e.values, value)
	return label
}

// Decode is the inverse of Encode.
func (e *LabelEncoder) Decode(label int) (string, bool) {
	if label < 0 || label >= len(e.values) {
		return "", false
	}
	return e.values[label], true
}

func (e *LabelEncoder) Len() int {
	return len(e.values)
}

// Mapping returns label -> value for every value seen so far.
func (e *LabelEncoder) Mapping() map[int]string {
	m := make(map[int]string, len(e.values))
	for label, value := range e.values {
		m[label] = value
	}
	return m
}
