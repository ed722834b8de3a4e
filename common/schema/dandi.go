package schema

// Required field sets for the two document kinds the archive validates.
// These mirror the published metadata schema; richer structural checks plug
// in behind the Validator interface.
var (
	assetRequiredFields   = []string{"contentSize", "encodingFormat", "id", "path"}
	versionRequiredFields = []string{"contributor", "description", "license", "name"}
)

// NewAssetValidator builds the default validator for asset metadata.
func NewAssetValidator(allowedVersions []string) Validator {
	return NewRequiredFieldValidator(allowedVersions, assetRequiredFields)
}

// NewVersionValidator builds the default validator for dandiset version
// metadata.
func NewVersionValidator(allowedVersions []string) Validator {
	return NewRequiredFieldValidator(allowedVersions, versionRequiredFields)
}
