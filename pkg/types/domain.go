package types

// Model is a model directory discovered in the model repository.
type Model struct {
	// Directory name; models are addressed by it.
	// example: reverse
	ID string `json:"id" example:"reverse"`
	// Name from the model configuration, defaults to ID.
	// example: reverse
	Name string `json:"name" example:"reverse"`
	// Absolute path to the model configuration file.
	// example: /srv/models/reverse/config.yaml
	Path string `json:"path" example:"/srv/models/reverse/config.yaml"`
	// Absolute path to the model directory.
	// example: /srv/models/reverse
	Dir string `json:"dir" example:"/srv/models/reverse"`
}
