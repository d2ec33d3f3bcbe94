package schemas

// Language is the tag attached to a source file by discovery and used to
// select a language adapter.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
	LanguageGo         Language = "go"
	LanguageUnknown    Language = ""
)

// SourceFile is one unit of work: a path, its language and its raw content.
// It is owned by the task analyzing it.
type SourceFile struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
	Content  []byte   `json:"-"`
}
