package repository

// ActionFilter defines filters for listing actions
type ActionFilter struct {
	JobID  *string
	Status *Status
	Limit  int
	Offset int
}
