package memory_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	contract "github.com/aretw0/arbor/pkg/ports/tests"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	q := domain.Question{ID: "1", Identifier: "name", Text: "Name?", Type: domain.TypeFreeText}
	loader := memory.NewLoader(
		&domain.Group{
			ID:        "profile",
			Questions: []domain.Question{q},
			Logic:     domain.NewTree(domain.NewQuestionNode(q.Ref(), 0)),
		},
		&domain.Group{ID: "empty"},
	)

	contract.GroupLoaderContractTest(t, loader, map[string]int{"profile": 1, "empty": 0})
}
