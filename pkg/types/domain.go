package types

// Workflow is a job-graph template discovered in the workflows directory.
type Workflow struct {
	// Stable identifier (the file name without extension).
	// example: z-image
	ID string `json:"id" example:"z-image"`
	// Human-friendly name.
	// example: z-image
	Name string `json:"name" example:"z-image"`
	// Absolute path to the template file on disk.
	// example: /etc/comfyd/workflows/z-image.json
	Path string `json:"path" example:"/etc/comfyd/workflows/z-image.json"`
	// Number of nodes in the template graph.
	// example: 14
	Nodes int `json:"nodes" example:"14"`
}
