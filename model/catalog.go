package model

import (
	"errors"
	"io/fs"
	"path"
	"strings"
)

// Entry ist ein gefundenes Artefakt im Modell-Verzeichnis.
type Entry struct {
	Key   Key
	Arch  Arch
	Noise int
	Path  string
	Size  int64
}

// Catalog listet alle Artefakte mit Endung ext unter root.
// root enthaelt je Architektur ein Unterverzeichnis (siehe Arch.Dir);
// fehlende Unterverzeichnisse werden uebersprungen.
func Catalog(root fs.FS, ext string) ([]Entry, error) {
	ext = normalizeExt(ext)

	var entries []Entry
	for _, a := range Archs {
		dirents, err := fs.ReadDir(root, a.Dir())
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}

		for _, de := range dirents {
			if de.IsDir() || !strings.EqualFold(path.Ext(de.Name()), ext) {
				continue
			}

			stem := strings.TrimSuffix(de.Name(), path.Ext(de.Name()))
			purpose, noise, c, ok := ParseArtifactName(stem)
			if !ok {
				continue
			}

			var size int64
			if info, err := de.Info(); err == nil {
				size = info.Size()
			}

			entries = append(entries, Entry{
				Key:   Key{Arch: a.Name, Color: c, Purpose: purpose},
				Arch:  a,
				Noise: noise,
				Path:  path.Join(a.Dir(), de.Name()),
				Size:  size,
			})
		}
	}
	return entries, nil
}
