package serviceiface

// Service is anything the app manager starts in services.yaml order and
// stops in reverse.
type Service interface {
	Name() string
	Start() error
	Stop() error
}
