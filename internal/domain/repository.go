package domain

import "context"

// ProjetRepository is the contract over the external record store. The store
// issues IDs at creation; updates are always field-level partials so that
// concurrent writers cannot clobber fields they do not know about.
type ProjetRepository interface {
	Create(ctx context.Context, p Projet) (*Projet, error)
	Get(ctx context.Context, id string) (*Projet, error)
	Update(ctx context.Context, id string, u ProjetUpdate) (*Projet, error)
	List(ctx context.Context) ([]Projet, error)
}
