package loaders

// Resource is a file read from disk by a Loader.
type Resource struct {
	Name     string
	FullPath string
	DataSize uint64
	Data     []byte
}

type Loader interface {
	Load(path string) (*Resource, error)
	Unload(*Resource) error
}
