package core

import "context"

// Connector talks to one external DOI registration agency.
// A nil Object selects the generic variant of a check ("reserved/registered for anyone").
type Connector interface {
	// Name returns the identifier of this connector (as used in config).
	Name() string

	// IsDOIReserved reports whether doi is known to the registry, for obj if given.
	IsDOIReserved(ctx context.Context, obj Object, doi string) (bool, error)

	// IsDOIRegistered reports whether doi resolves, to obj's canonical URL if obj is given.
	IsDOIRegistered(ctx context.Context, obj Object, doi string) (bool, error)

	ReserveDOI(ctx context.Context, obj Object, doi string) error
	RegisterDOI(ctx context.Context, obj Object, doi string) error
	UpdateMetadata(ctx context.Context, obj Object, doi string) error
	DeleteDOI(ctx context.Context, doi string) error
}

// URLResolver maps handles to their canonical, resolvable URL and back.
type URLResolver interface {
	ResolveToURL(ctx context.Context, handle string) (string, error)

	// ResolveURLToHandle returns the handle for url, or false if url is not one of ours.
	ResolveURLToHandle(ctx context.Context, url string) (string, bool)
}

// IdentifierStore keeps the local lifecycle state of identifiers.
type IdentifierStore interface {
	Save(ctx context.Context, id Identifier) error

	// Find returns ErrIdentifierNotFound if there is no record for the object.
	Find(ctx context.Context, provider, handle string) (*Identifier, error)

	List(ctx context.Context) ([]Identifier, error)
}
