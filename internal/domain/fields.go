package domain

// Field names shared by every store. They double as SQL column names and
// document keys, so filters and orderings are written once.
const (
	FieldID         = "id"
	FieldCreatedAt  = "created_at"
	FieldModifiedAt = "modified_at"
	FieldCreatedBy  = "created_by"
	FieldModifiedBy = "modified_by"

	FieldName             = "name"
	FieldDescription      = "description"
	FieldImageURL         = "image_url"
	FieldParentCategoryID = "parent_category_id"
	FieldIsMainCategory   = "is_main_category"
	FieldDisplayOrder     = "display_order"

	FieldPrice         = "price"
	FieldDiscountPrice = "discount_price"
	FieldStockQuantity = "stock_quantity"
	FieldSku           = "sku"
	FieldBarcode       = "barcode"
	FieldCategoryID    = "category_id"
	FieldIsFeatured    = "is_featured"
	FieldIsPublished   = "is_published"
	FieldPublishedAt   = "published_at"
	FieldSlug          = "slug"

	FieldIsActive  = "is_active"
	FieldProductID = "product_id"
	FieldTagID     = "tag_id"
	FieldStartDate = "start_date"
	FieldEndDate   = "end_date"
)

// AuditFields are the columns every entity carries.
var AuditFields = []string{FieldID, FieldCreatedAt, FieldModifiedAt, FieldCreatedBy, FieldModifiedBy}
