package dto

type CreateCollectionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

type UpdateCollectionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

type WorkIDsRequest struct {
	WorkIDs []uint `json:"work_ids" validate:"required,min=1"`
}

type SyncWorkCollectionsRequest struct {
	CollectionIDs []uint `json:"collection_ids"`
}

type CollectionOrderRequest struct {
	CollectionIDs []uint `json:"collection_ids" validate:"required,min=1"`
}
