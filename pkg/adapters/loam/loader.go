package loam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// Loader adapts a Loam repository to the ports.GroupLoader interface.
// Each document holds one group.
type Loader struct {
	Repo *loam.TypedRepository[GroupMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[GroupMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at dir and wraps it.
// Strict mode keeps integers from decaying into floats.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[GroupMetadata](repo)), nil
}

// Create initializes a writable, unversioned Loam repository at dir, creating
// the directory when needed.
func Create(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithVersioning(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[GroupMetadata](repo)), nil
}

// SaveGroup writes g as a document named after its id. The description
// becomes the document body.
func (l *Loader) SaveGroup(ctx context.Context, g *domain.Group) error {
	meta, err := encodeGroup(g)
	if err != nil {
		return fmt.Errorf("group %s: %w", g.ID, err)
	}
	err = l.Repo.Save(ctx, &loam.DocumentModel[GroupMetadata]{
		ID:      g.ID,
		Content: g.Description,
		Data:    meta,
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", g.ID, err)
	}
	return nil
}

func encodeGroup(g *domain.Group) (GroupMetadata, error) {
	meta := GroupMetadata{ID: g.ID, Identifier: g.Identifier, Name: g.Name}
	if meta.Identifier == g.ID {
		meta.Identifier = ""
	}

	// Questions go through their JSON form so the front matter uses the
	// same field names the decoder reads.
	data, err := json.Marshal(g.Questions)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta.Questions); err != nil {
		return meta, err
	}

	if !g.Logic.IsEmpty() {
		logic, err := domain.EncodeTree(g.Logic)
		if err != nil {
			return meta, err
		}
		meta.Logic = logic
	}
	return meta, nil
}

// LoadGroup reads and decodes one group document.
func (l *Loader) LoadGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	doc, err := l.Repo.Get(ctx, groupID)
	if err != nil {
		// Loam has no typed not-found error; fall back to a listing to tell
		// a missing group from a broken repository.
		ids, listErr := l.ListGroups(ctx)
		if listErr == nil && !contains(ids, groupID) {
			return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
		}
		return nil, fmt.Errorf("loam get failed for %s: %w", groupID, err)
	}

	g, err := decodeGroup(doc.ID, doc.Data, doc.Content)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}
	return g, nil
}

func decodeGroup(docID string, meta GroupMetadata, content string) (*domain.Group, error) {
	g := &domain.Group{
		ID:          meta.ID,
		Identifier:  meta.Identifier,
		Name:        meta.Name,
		Description: meta.Description,
	}
	if g.ID == "" {
		g.ID = docID
	}
	g.ID = trimExtension(g.ID)
	if g.Identifier == "" {
		g.Identifier = g.ID
	}
	if g.Name == "" {
		g.Name = g.ID
	}
	if g.Description == "" {
		g.Description = strings.TrimSpace(content)
	}

	questions, err := decodeQuestions(meta.Questions)
	if err != nil {
		return nil, err
	}
	g.Questions = questions

	tree, err := domain.DecodeTree(normalize(meta.Logic))
	if err != nil {
		return nil, err
	}
	g.Logic = tree.Normalize()
	if err := g.Logic.CheckDepths(); err != nil {
		return nil, err
	}
	return g, nil
}

// decodeQuestions decodes question entries. A question without an explicit
// id is identified by its identifier, which logic nodes may then reference.
func decodeQuestions(raw []any) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, item := range raw {
		var q domain.Question
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &q,
			TagName:          "mapstructure",
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(normalize(item)); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		if q.ID == "" {
			q.ID = q.Identifier
		}
		if q.ID == "" {
			return nil, fmt.Errorf("question %d: missing identifier", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("question %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = true
		questions = append(questions, q)
	}
	return questions, nil
}

// normalize converts YAML style map[any]any values into map[string]any.
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprintf("%v", k)] = normalize(sub)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = normalize(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = normalize(sub)
		}
		return out
	default:
		return v
	}
}

// ListGroups lists all groups in the repository.
func (l *Loader) ListGroups(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if !isGroupDocument(doc.Data) {
			continue
		}
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: group '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// isGroupDocument tells group documents from other files sharing the
// directory, such as arbor.yaml: a group sets an id, questions or logic.
func isGroupDocument(meta GroupMetadata) bool {
	return meta.ID != "" || len(meta.Questions) > 0 || len(meta.Logic) > 0
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// ErrWatchUnsupported is returned when the repository cannot be watched.
var ErrWatchUnsupported = errors.New("loam watch unsupported")

// Watch implements ports.Watchable. It emits the id of each changed group.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatchUnsupported, err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
