package protocols

type IdGenerator interface {
	NewId() string
}
