package llamacpp

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

var errUnknownIDs = errors.New("token ids were not produced by this tokenizer")

// pieceTable maps between ids and text for a model whose bindings only speak
// text. Prompt encodings are cached by their id sequence; generated pieces
// get ids counting down from -2 (-1 means "unknown" in the runtime API).
type pieceTable struct {
	prompts *lru.Cache[string, string]
	pieces  *lru.Cache[int, string]

	mu   sync.Mutex
	next int
}

func newPieceTable(promptCap, pieceCap int) *pieceTable {
	prompts, err := lru.New[string, string](promptCap)
	if err != nil {
		panic(err)
	}
	pieces, err := lru.New[int, string](pieceCap)
	if err != nil {
		panic(err)
	}
	return &pieceTable{prompts: prompts, pieces: pieces, next: -2}
}

func idsKey(ids []int) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

func (t *pieceTable) rememberPrompt(ids []int, text string) { t.prompts.Add(idsKey(ids), text) }

func (t *pieceTable) prompt(ids []int) (string, bool) { return t.prompts.Get(idsKey(ids)) }

// assign returns a fresh id for a generated piece.
func (t *pieceTable) assign(piece string) int {
	t.mu.Lock()
	id := t.next
	t.next--
	t.mu.Unlock()
	t.pieces.Add(id, piece)
	return id
}

// decode renders ids that are either all generated pieces or exactly one
// remembered prompt. Markers are dropped when skip is non-nil.
func (t *pieceTable) decode(ids []int, skip []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	if text, ok := t.prompt(ids); ok {
		for _, m := range skip {
			text = strings.ReplaceAll(text, m, "")
		}
		return text, nil
	}
	var b strings.Builder
	for _, id := range ids {
		piece, ok := t.pieces.Get(id)
		if !ok {
			return "", errUnknownIDs
		}
		if isMarker(piece, skip) {
			continue
		}
		b.WriteString(piece)
	}
	return b.String(), nil
}

func isMarker(piece string, markers []string) bool {
	for _, m := range markers {
		if piece == m {
			return true
		}
	}
	return false
}
