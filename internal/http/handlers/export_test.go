package handlers

// Aliases exposing request/response payload types to the external test
// package, which lives outside package handlers to avoid an import cycle
// with httpapi.
type (
	UploadRequest             = uploadRequest
	EditRequest               = editRequest
	EditResponse              = editResponse
	ModelSettingsRequest      = modelSettingsRequest
	CreateVariationRequest    = createVariationRequest
	VariationEditRequest      = variationEditRequest
	DuplicateVariationRequest = duplicateVariationRequest
	ComparisonSelectRequest   = comparisonSelectRequest
	ResizeRequest             = resizeRequest
	ReferenceRequest          = referenceRequest
	SelectReferenceRequest    = selectReferenceRequest
)
