package domain

import "strings"

// Gender — целевой пол варианта. Пустое значение означает «неизвестно».
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnisex  Gender = "unisex"
)

// ParseGender нормализует строку из каталога. Непустые значения сохраняются как есть в нижнем регистре.
func ParseGender(s string) Gender {
	return Gender(strings.ToLower(strings.TrimSpace(s)))
}

// Known сообщает, задан ли пол.
func (g Gender) Known() bool {
	return g != GenderUnknown
}

// CatalogAttributes — атрибуты варианта, нужные для ранжирования
type CatalogAttributes struct {
	ItemID     string
	ParentID   string  // идентификатор родительского товара, пусто — не задан
	Gender     Gender
	Popularity float64 // в диапазоне [0, 1]
}

func NewCatalogAttributes(itemID, parentID string, gender Gender, popularity float64) CatalogAttributes {
	switch {
	case popularity < 0:
		popularity = 0
	case popularity > 1:
		popularity = 1
	}

	return CatalogAttributes{
		ItemID:     itemID,
		ParentID:   parentID,
		Gender:     gender,
		Popularity: popularity,
	}
}
