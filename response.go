package bonito

// Result is the outcome of sending a notification.
type Result interface {
	Err() error
	Status() int
	Provider() string
	RecipientIdentifier() string
	ExtraKeys() []string
	ExtraValue(string) string
	MarshalJSON() ([]byte, error)
}
