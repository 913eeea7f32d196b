package domain

type Archiver interface {
	Compress(sourceDir, destPath string) error
	Entries(archivePath string) ([]string, error)
	Extension() string
}
