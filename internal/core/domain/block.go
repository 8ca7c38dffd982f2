package domain

import "strings"

// Block represents one indexed note block from the source graph.
// It is the canonical unit of indexing: metadata and its vector are
// always written together.
type Block struct {
	// UID is the stable, globally unique block identifier from the source graph.
	UID string

	// Content is the block's text content.
	Content string

	// PageUID identifies the page (top-level document) containing the block.
	PageUID string

	// PageTitle is the title of the containing page.
	PageTitle string

	// ParentUID identifies the block's direct parent, empty for top-level blocks.
	ParentUID string

	// ParentChain holds ancestor block contents ordered from root to
	// immediate parent. Used as hierarchical context when embedding.
	ParentChain []string

	// EditTime is the block's last-modified timestamp in epoch milliseconds.
	EditTime int64

	// EmbeddedAt is when the block was last embedded, in epoch milliseconds.
	// Zero means the block has never been embedded.
	EmbeddedAt int64
}

// Stale reports whether the block needs (re-)embedding: it has never been
// embedded, or was edited after its last embedding.
func (b *Block) Stale() bool {
	return b.EmbeddedAt == 0 || b.EditTime > b.EmbeddedAt
}

// EmbeddingText formats the block with its hierarchical context for
// embedding. Page title and ancestor path bias the vector towards the
// block's position in the graph. The format is fixed: changing it
// invalidates every stored vector.
func (b *Block) EmbeddingText() string {
	var sb strings.Builder

	if b.PageTitle != "" {
		sb.WriteString("Page: ")
		sb.WriteString(b.PageTitle)
		sb.WriteString("\n")
	}

	if len(b.ParentChain) > 0 {
		sb.WriteString("Path: ")
		sb.WriteString(strings.Join(b.ParentChain, " > "))
		sb.WriteString("\n")
	}

	sb.WriteString("Content: ")
	sb.WriteString(b.Content)

	return sb.String()
}
