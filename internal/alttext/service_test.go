package alttext

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/media"
	"github.com/suPer8Hu/w3a11y-artisan/internal/remote"
	"github.com/suPer8Hu/w3a11y-artisan/internal/settings"
)

type fakeAPI struct {
	alt  string
	err  error
	last remote.AltTextRequest
}

func (f *fakeAPI) GenerateAltText(_ context.Context, req remote.AltTextRequest) (*remote.AltTextResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &remote.AltTextResponse{AltText: f.alt, CreditsUsed: 1, CreditsRemaining: 41}, nil
}

type staticSettings settings.Settings

func (s staticSettings) Load(context.Context) (settings.Settings, error) {
	return settings.Settings(s), nil
}

type recordingNotifier struct{ users []uint64 }

func (n *recordingNotifier) LowCredits(_ context.Context, userID uint64) {
	n.users = append(n.users, userID)
}

func newService(t *testing.T, api *fakeAPI) (*Service, *media.Repo, *recordingNotifier) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&media.Attachment{}))

	lib := media.NewRepo(db)
	ctx := context.Background()
	require.NoError(t, lib.Create(ctx, &media.Attachment{Title: "dock", URL: "https://example.test/dock.jpg", MimeType: "image/jpeg"}))
	require.NoError(t, lib.Create(ctx, &media.Attachment{Title: "manual", URL: "https://example.test/manual.pdf", MimeType: "application/pdf"}))

	n := &recordingNotifier{}
	return NewService(api, lib, staticSettings(settings.Defaults()), n, nil), lib, n
}

func TestGenerate_SavesSanitizedValue(t *testing.T) {
	api := &fakeAPI{alt: `  Image of a <b>wooden</b> dock   at sunrise `}
	svc, lib, _ := newService(t, api)
	ctx := context.Background()

	res, err := svc.Generate(ctx, 1, Request{AttachmentID: 1, Language: "de", Save: true})
	require.NoError(t, err)
	assert.Equal(t, "Image of a wooden dock at sunrise", res.AltText)
	assert.True(t, res.Saved)
	assert.Equal(t, "de", api.last.Language)
	assert.Equal(t, 125, api.last.MaxLength)

	a, err := lib.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, res.AltText, a.Alt())
}

func TestGenerate_WithoutSaveLeavesAttachment(t *testing.T) {
	svc, lib, _ := newService(t, &fakeAPI{alt: "A dock"})
	res, err := svc.Generate(context.Background(), 1, Request{AttachmentID: 1})
	require.NoError(t, err)
	assert.False(t, res.Saved)

	a, err := lib.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, a.AltText)
}

func TestGenerate_Rejects(t *testing.T) {
	svc, _, _ := newService(t, &fakeAPI{alt: "x"})
	ctx := context.Background()

	_, err := svc.Generate(ctx, 1, Request{AttachmentID: 0})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	_, err = svc.Generate(ctx, 1, Request{AttachmentID: 99})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = svc.Generate(ctx, 1, Request{AttachmentID: 2})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestGenerate_CreditErrorRaisesNotice(t *testing.T) {
	svc, _, n := newService(t, &fakeAPI{err: apperr.Credit("Insufficient credits.")})
	_, err := svc.Generate(context.Background(), 4, Request{AttachmentID: 1})
	assert.True(t, apperr.Is(err, apperr.CodeCredit))
	assert.Equal(t, []uint64{4}, n.users)
}

func TestGenerate_StoresRemoteTextVerbatim(t *testing.T) {
	remoteAlt := "photo of a fisherman mending nets on a pier"
	svc, lib, _ := newService(t, &fakeAPI{alt: remoteAlt})
	ctx := context.Background()

	res, err := svc.Generate(ctx, 1, Request{AttachmentID: 1, Save: true})
	require.NoError(t, err)
	assert.Equal(t, remoteAlt, res.AltText)

	a, err := lib.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, remoteAlt, a.Alt())
}

func TestGenerate_EmptyRemoteTextIsServerError(t *testing.T) {
	svc, _, _ := newService(t, &fakeAPI{alt: "  <br>  "})
	_, err := svc.Generate(context.Background(), 1, Request{AttachmentID: 1, Save: true})
	assert.True(t, apperr.Is(err, apperr.CodeServer))
}
