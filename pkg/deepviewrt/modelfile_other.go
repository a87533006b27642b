//go:build !unix

package deepviewrt

// LoadModelFile reads the model file into memory and loads it.
func (c *Context) LoadModelFile(path string) error {
	return c.loadModelFileCopy(path)
}

func munmapModel(data []byte) error {
	return nil
}
