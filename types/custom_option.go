package types

// CustomOption is a raw option passed as-is to the encoder
// (for example "preset"="p4" or "tune"="ll").
type CustomOption struct {
	Key   string `json:"key"   yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

type CustomOptions []CustomOption

func (opts CustomOptions) Get(key string) (string, bool) {
	for _, opt := range opts {
		if opt.Key == key {
			return opt.Value, true
		}
	}
	return "", false
}
