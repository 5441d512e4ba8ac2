package repo

import "errors"

// Ошибки репозиториев флота.
var (
	// ErrNotFound — rollout, задача или tenant-запись не найдены.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — конфликт уникальности. В частности, попытка
	// создать второй активный rollout компонента.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии записи.
	ErrInvalidState = errors.New("invalid state")
)
