package books

type CreateBookPayload struct {
	Title       string  `json:"title" mod:"trim" validate:"required,max=200"`
	Subtitle    *string `json:"subtitle,omitempty" mod:"trim" validate:"omitempty,max=200"`
	Description string  `json:"description" mod:"trim" validate:"required,min=40,max=2000"`
	BookType    string  `json:"book_type" validate:"required,oneof=fiction non_fiction childrens technical"`
	TargetPages int     `json:"target_pages" default:"25" validate:"min=1,max=100"`
}

type UpdatePagePayload struct {
	Content     string `json:"content" validate:"required"`
	BaseVersion int    `json:"base_version" validate:"min=0"`
}

type ReorderPagesPayload struct {
	PageIDs []string `json:"page_ids" validate:"required,min=1,dive,required"`
}

type ListBooksQuery struct {
	Limit           int    `query:"limit" json:"limit,omitempty" validate:"min=0,max=100"`
	Offset          int    `query:"offset" json:"offset,omitempty" validate:"min=0"`
	IncludeArchived bool   `query:"include_archived" json:"include_archived,omitempty"`
	Search          string `query:"search" json:"search,omitempty" mod:"trim" validate:"omitempty,max=100"`
}
