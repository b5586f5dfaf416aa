package categories

type Category struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}
