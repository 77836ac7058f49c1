package models

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	tgerrors "TourGuard/pkg/errors"

	"github.com/stretchr/testify/require"
)

func TestIssueDigitalID(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "did-acc-1", "P500001")

	card, err := IssueDigitalID(db, Actor{ID: "did-acc-1", Role: RoleTourist}, IssueDigitalIDInput{
		DocumentType:   "passport",
		DocumentNumber: "P500001",
		ValidDays:      30,
	})
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^DID-\d{4}-\d{4}-\d{6}$`), card.Serial)
	require.Equal(t, tourist.ID, card.TouristID)
	require.Equal(t, 1, card.Version)
	require.Equal(t, CardStatusActive, card.EffectiveStatus())

	// 内容指纹可独立校验
	digest := sha256.Sum256(append([]byte(card.Serial), []byte(card.QRPayload)...))
	require.Equal(t, hex.EncodeToString(digest[:]), card.QRPayloadHash)

	// 当前证件缓存刷新
	stored, err := GetTourist(db, tourist.ID)
	require.NoError(t, err)
	require.Equal(t, card.Serial, stored.CurrentCardSerial)
}

func TestIssueDigitalIDValidation(t *testing.T) {
	db := newTestDB(t)
	_, err := IssueDigitalID(db, Actor{ID: "did-acc-2", Role: RoleTourist}, IssueDigitalIDInput{})
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalid))
}

func TestReissueKeepsOldCardIntact(t *testing.T) {
	db := newTestDB(t)
	seedTourist(t, db, "did-acc-3", "P500003")
	actor := Actor{ID: "did-acc-3", Role: RoleTourist}

	first, err := IssueDigitalID(db, actor, IssueDigitalIDInput{
		DocumentType: "passport", DocumentNumber: "P500003",
	})
	require.NoError(t, err)

	second, err := IssueDigitalID(db, actor, IssueDigitalIDInput{
		DocumentType: "passport", DocumentNumber: "P500003", PhotoRef: "photos/new.jpg",
	})
	require.NoError(t, err)
	require.NotEqual(t, first.Serial, second.Serial)
	require.Equal(t, 2, second.Version)

	// 旧卡一字不动
	old, err := GetDigitalIDCard(db, first.Serial)
	require.NoError(t, err)
	require.Equal(t, first.QRPayload, old.QRPayload)
	require.Equal(t, first.QRPayloadHash, old.QRPayloadHash)
	require.Equal(t, first.Version, old.Version)
	require.Empty(t, old.PhotoRef)

	history, err := ListDigitalIDCards(db, first.TouristID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 1, history[0].Version)
	require.Equal(t, 2, history[1].Version)

	current, err := CurrentDigitalID(db, first.TouristID)
	require.NoError(t, err)
	require.Equal(t, second.Serial, current.Serial)
}

func TestModifyDigitalIDCardAlwaysFails(t *testing.T) {
	db := newTestDB(t)
	seedTourist(t, db, "did-acc-4", "P500004")

	card, err := IssueDigitalID(db, Actor{ID: "did-acc-4", Role: RoleTourist}, IssueDigitalIDInput{
		DocumentType: "passport", DocumentNumber: "P500004",
	})
	require.NoError(t, err)

	err = ModifyDigitalIDCard(db, card.Serial)
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeForbidden))

	// 不存在的卡报 not found，而不是 forbidden
	err = ModifyDigitalIDCard(db, "DID-0000-0000-000000")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeNotFound))
}

func TestIssueDigitalIDSynthesizesProfile(t *testing.T) {
	db := newTestDB(t)

	// 主体没有档案时合成占位档案
	card, err := IssueDigitalID(db, Actor{ID: "fresh-account", Role: RoleTourist}, IssueDigitalIDInput{
		DocumentType: "passport", DocumentNumber: "P500005", Name: "Walk-in Tourist",
	})
	require.NoError(t, err)

	tourist, err := GetTouristByAccount(db, "fresh-account")
	require.NoError(t, err)
	require.Equal(t, "Walk-in Tourist", tourist.Name)
	require.Equal(t, tourist.ID, card.TouristID)
}

func TestEffectiveStatusDerivesExpiry(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "did-acc-6", "P500006")

	card, err := IssueDigitalID(db, Actor{ID: "did-acc-6", Role: RoleTourist}, IssueDigitalIDInput{
		DocumentType: "passport", DocumentNumber: "P500006", ValidDays: 1,
	})
	require.NoError(t, err)

	// 过期在读取时派生，不回写存储
	require.NoError(t, db.Model(&DigitalIDCard{}).Where("serial = ?", card.Serial).
		Update("expires_at", card.IssuedAt.AddDate(0, 0, -1)).Error)

	expired, err := GetDigitalIDCard(db, card.Serial)
	require.NoError(t, err)
	require.Equal(t, CardStatusExpired, expired.EffectiveStatus())
	require.Equal(t, CardStatusActive, expired.Status)

	_, err = CurrentDigitalID(db, tourist.ID)
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeNotFound))
}
