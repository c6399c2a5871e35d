package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marginalia-app/marginalia/pkg/models"
)

func TestCheck(t *testing.T) {
	alice := models.NewReaderID()
	bob := models.NewReaderID()

	tests := []struct {
		name  string
		actor models.ReaderID
		owner models.ReaderID
		want  Decision
	}{
		{name: "owner", actor: alice, owner: alice, want: Allow},
		{name: "other reader", actor: bob, owner: alice, want: Forbidden},
		{name: "zero actor", actor: models.ReaderID{}, owner: alice, want: Forbidden},
		{name: "zero owner", actor: alice, owner: models.ReaderID{}, want: Forbidden},
		{name: "both zero", want: Forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.actor, tt.owner)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == Allow, got.Allowed())
		})
	}
}
