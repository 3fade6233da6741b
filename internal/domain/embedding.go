package domain

// Embedding — вектор признаков одного варианта товара из векторного хранилища
type Embedding struct {
	ItemID string
	Vector []float32
}

func NewEmbedding(itemID string, vector []float32) Embedding {
	return Embedding{
		ItemID: itemID,
		Vector: vector,
	}
}
