package handler

import (
	"context"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/schema"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// publicationPatch carries the publication fields a payload may set.
// Nil fields were not sent.
type publicationPatch struct {
	ID             models.PublicationID
	ReaderID       models.ReaderID
	Name           *string
	Description    *string
	BookFormat     *string
	DatePublished  *string
	URL            *string
	EncodingFormat *string
	NumberOfPages  *int
	InLanguage     []string
	Keywords       []string
	ReadingOrder   models.Links
	Links          models.Links
	Resources      models.Links
	Attributions   []models.Attribution
	JSON           models.JSONMap

	hasInLanguage, hasKeywords bool
	hasReadingOrder, hasLinks  bool
	hasResources, hasJSON      bool

	// roles lists the attribution roles sent in the payload.
	roles map[models.AttributionRole]bool
}

func preparePublication(fields map[string]any) (publicationPatch, error) {
	var (
		p    publicationPatch
		errs = &schema.ValidationError{}
	)

	for key, dst := range map[string]**string{
		"name":           &p.Name,
		"description":    &p.Description,
		"bookFormat":     &p.BookFormat,
		"datePublished":  &p.DatePublished,
		"url":            &p.URL,
		"encodingFormat": &p.EncodingFormat,
	} {
		if s, ok := stringValue(fields, key); ok {
			*dst = &s
		}
	}
	if n, ok := fields["numberOfPages"].(float64); ok {
		switch {
		case n < 0:
			errs.Add("numberOfPages", "minimum", map[string]any{"comparison": ">=", "limit": 0})
		case n > models.MaxPages:
			errs.Add("numberOfPages", "maximum", map[string]any{"comparison": "<=", "limit": models.MaxPages})
		default:
			pages := int(n)
			p.NumberOfPages = &pages
		}
	}

	if v, ok := fields["inLanguage"]; ok {
		p.InLanguage, p.hasInLanguage = coerceStrings(v), true
	}
	if v, ok := fields["keywords"]; ok {
		p.Keywords, p.hasKeywords = coerceStrings(v), true
	}
	if v, ok := fields["readingOrder"]; ok {
		p.ReadingOrder, p.hasReadingOrder = coerceLinks("readingOrder", v, errs), true
	}
	if v, ok := fields["links"]; ok {
		p.Links, p.hasLinks = coerceLinks("links", v, errs), true
	}
	if v, ok := fields["resources"]; ok {
		p.Resources, p.hasResources = coerceLinks("resources", v, errs), true
	}
	p.Attributions, p.roles = coerceAttributions(fields, errs)
	p.JSON, p.hasJSON = mapValue(fields, "json")

	return p, errs.Err()
}

func (p publicationPatch) apply(pub *models.Publication) {
	setString(&pub.Name, p.Name)
	setString(&pub.Description, p.Description)
	setString(&pub.BookFormat, p.BookFormat)
	setString(&pub.DatePublished, p.DatePublished)
	setString(&pub.URL, p.URL)
	setString(&pub.EncodingFormat, p.EncodingFormat)
	if p.NumberOfPages != nil {
		pub.NumberOfPages = *p.NumberOfPages
	}
	if p.hasInLanguage {
		pub.InLanguage = p.InLanguage
	}
	if p.hasKeywords {
		pub.Keywords = p.Keywords
	}
	if p.hasReadingOrder {
		pub.ReadingOrder = p.ReadingOrder
	}
	if p.hasLinks {
		pub.Links = p.Links
	}
	if p.hasResources {
		pub.Resources = p.Resources
	}
	if len(p.roles) > 0 {
		pub.Attributions = mergeAttributions(pub.Attributions, p.Attributions, p.roles)
	}
	if p.hasJSON {
		pub.JSON = p.JSON
	}
}

// mergeAttributions keeps the current attributions of roles that were not
// sent and replaces the rest with the sent ones.
func mergeAttributions(current, sent []models.Attribution, roles map[models.AttributionRole]bool) []models.Attribution {
	merged := make([]models.Attribution, 0, len(current)+len(sent))
	for _, a := range current {
		if !roles[a.Role] {
			merged = append(merged, a)
		}
	}
	return append(merged, sent...)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// CreatePublication stores a new publication owned by the actor.
func CreatePublication() Operation {
	return op[publicationPatch]{
		prepare: func(cmd command.Command, actor models.ReaderID) (publicationPatch, error) {
			p, err := preparePublication(cmd.Object.Fields)
			p.ReaderID = actor
			return p, err
		},
		execute: func(ctx context.Context, st store.Store, p publicationPatch) (Result, error) {
			pub := &models.Publication{ReaderID: p.ReaderID}
			p.apply(pub)
			if err := st.CreatePublication(ctx, pub); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Publication, pub)}, nil
		},
	}
}

// UpdatePublication merges the sent fields into the stored publication.
func UpdatePublication() Operation {
	return op[publicationPatch]{
		prepare: func(cmd command.Command, actor models.ReaderID) (publicationPatch, error) {
			p, err := preparePublication(cmd.Object.Fields)
			if err != nil {
				return p, err
			}
			p.ID, err = models.ParsePublicationID(cmd.Object.ID)
			if err != nil {
				return p, notFound(command.Publication, cmd.Object.ID)
			}
			return p, nil
		},
		execute: func(ctx context.Context, st store.Store, p publicationPatch) (Result, error) {
			pub, err := publications.mustLoad(ctx, st, p.ID)
			if err != nil {
				return Result{}, err
			}
			p.apply(pub)
			if err := st.UpdatePublication(ctx, pub); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Publication, pub)}, nil
		},
	}
}

// DeletePublication soft-deletes a publication; the store cascades to its
// notes, documents and relation rows.
func DeletePublication() Operation {
	return op[models.PublicationID]{
		prepare: func(cmd command.Command, _ models.ReaderID) (models.PublicationID, error) {
			id, err := models.ParsePublicationID(cmd.Object.ID)
			if err != nil {
				return id, notFound(command.Publication, cmd.Object.ID)
			}
			return id, nil
		},
		execute: func(ctx context.Context, st store.Store, id models.PublicationID) (Result, error) {
			pub, err := publications.mustLoad(ctx, st, id)
			if err != nil {
				return Result{}, err
			}
			if err := st.DeletePublication(ctx, id); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Publication, pub)}, nil
		},
	}
}
