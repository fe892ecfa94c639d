package tools

// Tool names as exposed to agents. Dispatch keys on these exactly.
const (
	ToolList      = "List"
	ToolRead      = "Read"
	ToolSearch    = "Search"
	ToolWriteNote = "WriteNote"
	ToolReadNote  = "ReadNote"
	ToolListNotes = "ListNotes"
)

// Names returns the served tool set.
func Names() []string {
	return []string{ToolList, ToolRead, ToolSearch, ToolWriteNote, ToolReadNote, ToolListNotes}
}

// Dispatch routes a named tool call with loosely-typed arguments, as they
// arrive from JSON transports. Missing or mistyped arguments and unknown
// tool names all come back as error payloads.
func (s *Service) Dispatch(name string, args map[string]any) []byte {
	switch name {
	case ToolList:
		topic, _ := args["topic"].(string)
		return s.List(topic)

	case ToolRead:
		path, ok := args["path"].(string)
		if !ok || path == "" {
			return errPayload("path is required")
		}
		var page *int
		if raw, present := args["page"]; present {
			f, ok := raw.(float64)
			if !ok {
				return errPayload("page must be a number")
			}
			n := int(f)
			page = &n
		}
		return s.Read(path, page)

	case ToolSearch:
		query, ok := args["query"].(string)
		if !ok || query == "" {
			return errPayload("query is required")
		}
		maxResults := 0
		if f, ok := args["max_results"].(float64); ok {
			maxResults = int(f)
		}
		return s.Search(query, maxResults)

	case ToolWriteNote:
		path, ok := args["path"].(string)
		if !ok || path == "" {
			return errPayload("path is required")
		}
		content, ok := args["content"].(string)
		if !ok {
			return errPayload("content is required")
		}
		return s.WriteNote(path, content)

	case ToolReadNote:
		path, ok := args["path"].(string)
		if !ok || path == "" {
			return errPayload("path is required")
		}
		return s.ReadNote(path)

	case ToolListNotes:
		return s.ListNotes()

	default:
		return errPayload("Unknown tool: " + name)
	}
}
