package errors

// Messages shared by the build preconditions. They are also the values
// compared by errors.Is through ClassifiedError.Is.
const (
	MsgNoMetadataFound     = "No metadata.yaml found, is this a repository of documentation?"
	MsgMissingBaseDir      = "Base directory not found"
	MsgMissingTemplate     = "Template file not found"
	MsgMissingVersionsFile = "No versions file found"
	MsgBranchNotFound      = "Version branch not found"
	MsgRepositoryNotFound  = "Repository not found"
)

// NoMetadataFound reports a source tree without any metadata declaration.
func NoMetadataFound(root string) *ClassifiedError {
	return NewError(CategoryMetadata, MsgNoMetadataFound).
		Fatal().
		UserAction().
		WithContext("root", root).
		Build()
}

// MissingBaseDirectory reports a base directory that does not exist.
func MissingBaseDirectory(dir string, cause error) *ClassifiedError {
	return ConfigError(MsgMissingBaseDir).WithCause(cause).WithContext("path", dir).Build()
}

// MissingTemplate reports an explicit template path that does not exist.
func MissingTemplate(path string, cause error) *ClassifiedError {
	return ConfigError(MsgMissingTemplate).WithCause(cause).WithContext("path", path).Build()
}

// MissingVersionsFile reports a multi-version build without a versions file.
func MissingVersionsFile(path string, cause error) *ClassifiedError {
	return ConfigError(MsgMissingVersionsFile).WithCause(cause).WithContext("path", path).Build()
}

// BranchNotFound reports a requested version that resolves to no branch or tag.
func BranchNotFound(version string, cause error) *ClassifiedError {
	return GitError(MsgBranchNotFound).WithCause(cause).WithContext("version", version).Build()
}

// RepositoryNotFound reports a source repository that cannot be opened or cloned.
func RepositoryNotFound(url string, cause error) *ClassifiedError {
	return GitError(MsgRepositoryNotFound).
		WithCategory(CategoryNotFound).
		WithCause(cause).
		WithContext("url", url).
		Build()
}

// IsNoMetadataFound reports whether err is (or wraps) a NoMetadataFound error.
func IsNoMetadataFound(err error) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.category == CategoryMetadata && classified.message == MsgNoMetadataFound
	}
	return false
}
