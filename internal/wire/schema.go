package wire

// SupportedSchemaVersion is the only submission schema version this
// dispatcher accepts. Bump deliberately; old clients must be upgraded
// rather than silently reinterpreted.
const SupportedSchemaVersion = "1.0.0"

// NodeType discriminates the two node kinds a submission can carry.
// Closed enumeration: anything else is a schema error, never silently
// coerced.
type NodeType string

const (
	NodeTypeFolder NodeType = "folder"
	NodeTypeTask   NodeType = "task"
)

// Document is the top-level submission payload posted to POST /graphs/.
type Document struct {
	SchemaVersion string      `json:"schemaVersion"`
	Name          string      `json:"name"`
	User          string      `json:"user"`
	PoolName      string      `json:"poolName"`
	MaxRN         int         `json:"maxRN"`
	Root          int         `json:"root"`
	Nodes         []NodeEntry `json:"nodes"`
}

// DependencyEntry is one outgoing dependency edge, by index into the
// enclosing Document's Nodes slice.
type DependencyEntry struct {
	TargetIndex int   `json:"targetIndex"`
	StatusSet   []int `json:"statusSet,omitempty"`
}

// CommandEntry is one command belonging to a task node.
type CommandEntry struct {
	Name      string            `json:"name"`
	Runner    string            `json:"runner,omitempty"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// NodeEntry is one folder or task node. Fields not applicable to a given
// Type are simply left at their zero value; Validate checks that the
// fields actually present match the declared Type.
type NodeEntry struct {
	Index        int               `json:"index"`
	Type         NodeType          `json:"type"`
	Name         string            `json:"name"`
	Strategy     string            `json:"strategy,omitempty"`
	Children     []int             `json:"children,omitempty"`
	Commands     []CommandEntry    `json:"commands,omitempty"`
	Runner       string            `json:"runner,omitempty"`
	Decomposer   string            `json:"decomposer,omitempty"`
	MaxAttempt   int               `json:"maxAttempt,omitempty"`
	MinNbCores   int               `json:"minNbCores,omitempty"`
	MaxNbCores   int               `json:"maxNbCores,omitempty"`
	RamUse       int               `json:"ramUse,omitempty"`
	Requirements map[string]string `json:"requirements,omitempty"`
	Licence      string            `json:"licence,omitempty"`
	Arguments    map[string]string `json:"arguments,omitempty"`
	Environment  map[string]string `json:"environment,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	Timer        *int64            `json:"timer,omitempty"`
	Priority     int               `json:"priority,omitempty"`
	DispatchKey  float64           `json:"dispatchKey,omitempty"`
	MaxRN        int               `json:"maxRN,omitempty"`
	Dependencies []DependencyEntry `json:"dependencies,omitempty"`
}
