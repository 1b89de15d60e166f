package presence

// Null is the stand-in sensor for a presence path that is configured out
// or whose hardware could not be acquired. It never starts, always reads
// not present, and ignores Fail and LogConflict.
type Null struct {
	owner
	name string
}

// NewNull creates a stand-in reporting under name.
func NewNull(name string) *Null {
	return &Null{name: name}
}

func (n *Null) Start() (bool, error) { return false, nil }
func (n *Null) Stop()                {}
func (n *Null) Present() bool        { return false }
func (n *Null) Fail()                {}
func (n *Null) LogConflict(string)   {}
func (n *Null) Name() string         { return n.name }
