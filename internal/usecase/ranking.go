package usecase

import (
	"cmp"

	"github.com/DRSN-tech/recommender/internal/catalog"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/registry"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
)

// Candidate — результат поиска, обогащённый атрибутами каталога.
type Candidate struct {
	ItemID     string
	ParentID   string
	Gender     domain.Gender
	Popularity float64
	Similarity float32
	InCatalog  bool
}

// QueryContext — атрибуты товара, для которого строится выдача.
type QueryContext struct {
	ItemID   string
	ParentID string
	Gender   domain.Gender
}

// NewQueryContext берёт атрибуты запроса из каталога. Товар без записи в каталоге
// не исключает ни одного родителя и считается товаром с неизвестным полом.
func NewQueryContext(cat *catalog.Store, itemID string) QueryContext {
	q := QueryContext{ItemID: itemID}
	if attrs, ok := cat.Get(itemID); ok {
		q.ParentID = attrs.ParentID
		q.Gender = attrs.Gender
	}
	return q
}

// CompareVariants упорядочивает варианты одного товара: сначала популярнее, при равенстве ближе.
// Отрицательное значение означает, что a идёт раньше b.
func CompareVariants(a, b Candidate) int {
	if c := cmp.Compare(b.Popularity, a.Popularity); c != 0 {
		return c
	}
	return cmp.Compare(b.Similarity, a.Similarity)
}

// BuildCandidates переводит позиции индекса в кандидатов, сохраняя порядок поиска.
func BuildCandidates(reg *registry.Registry, cat *catalog.Store, results []vectorindex.SearchResult) []Candidate {
	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		id, ok := reg.ID(r.Position)
		if !ok {
			continue
		}

		attrs, inCatalog := cat.Get(id)
		out = append(out, Candidate{
			ItemID:     id,
			ParentID:   attrs.ParentID,
			Gender:     attrs.Gender,
			Popularity: attrs.Popularity,
			Similarity: r.Score,
			InCatalog:  inCatalog,
		})
	}
	return out
}

// RankCandidates оставляет по одному варианту на родительский товар и ставит вперёд варианты
// того же пола, что и запрос. Кандидаты ожидаются в порядке убывания близости.
func RankCandidates(q QueryContext, candidates []Candidate, k int) []domain.Recommendation {
	if k <= 0 {
		return []domain.Recommendation{}
	}

	var (
		parents []string
		best    = make(map[string]Candidate)
	)
	for _, c := range candidates {
		switch {
		case c.ItemID == q.ItemID, !c.InCatalog, c.ParentID == "":
			continue
		case q.ParentID != "" && c.ParentID == q.ParentID:
			continue
		}

		cur, seen := best[c.ParentID]
		if !seen {
			parents = append(parents, c.ParentID)
			best[c.ParentID] = c
			continue
		}
		if CompareVariants(c, cur) < 0 {
			best[c.ParentID] = c
		}
	}

	same := make([]Candidate, 0, len(parents))
	other := make([]Candidate, 0, len(parents))
	for _, p := range parents {
		c := best[p]
		if q.Gender.Known() && c.Gender == q.Gender {
			same = append(same, c)
		} else {
			other = append(other, c)
		}
	}

	out := make([]domain.Recommendation, 0, min(k, len(parents)))
	for _, c := range append(same, other...) {
		if len(out) == k {
			break
		}
		out = append(out, domain.NewRecommendation(c.ItemID, c.Similarity))
	}
	return out
}
