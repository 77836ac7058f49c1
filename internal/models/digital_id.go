package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/util"

	"gorm.io/gorm"
)

// 证件状态。expired 在读取时按有效期派生，不落库
const (
	CardStatusActive  = "active"
	CardStatusExpired = "expired"
	CardStatusRevoked = "revoked"
)

const (
	cardSerialMaxAttempts = 5
	passportMaxAttempts   = 5
	DefaultCardValidDays  = 30
)

// DigitalIDCard 数字身份证。一经签发不可变更，
// 任何更正都必须签发新卡（新序列号、版本 +1）
type DigitalIDCard struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	Serial    string `json:"serial" gorm:"uniqueIndex;size:32"` // DID-<year>-<游客ID后4位>-<6位随机数字>
	TouristID uint   `json:"touristId" gorm:"index"`
	Version   int    `json:"version"`

	DocumentType   string `json:"documentType" gorm:"size:32"`
	DocumentNumber string `json:"documentNumber" gorm:"size:64"`
	PhotoRef       string `json:"photoRef,omitempty" gorm:"size:255"`

	QRPayload     string `json:"qrPayload" gorm:"size:512"`
	QRPayloadHash string `json:"qrPayloadHash" gorm:"size:64"` // sha256(serial + payload)

	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Status    string    `json:"status" gorm:"size:16;default:active"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// EffectiveStatus 读取时派生的状态：过期卡报告 expired，其余取存储值
func (c *DigitalIDCard) EffectiveStatus() string {
	if time.Now().After(c.ExpiresAt) {
		return CardStatusExpired
	}
	return c.Status
}

// QRCardPayload 二维码负载
type QRCardPayload struct {
	Serial    string    `json:"serial"`
	TouristID uint      `json:"touristId"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// idLocks 同一游客的签发串行化，保证序列号与版本号分配无竞争
var idLocks = util.NewKeyedMutex()

// IssueDigitalIDInput 签发参数
type IssueDigitalIDInput struct {
	DocumentType   string
	DocumentNumber string
	PhotoRef       string
	ValidDays      int
	Name           string // 无档案时用于占位档案
}

func generateCardSerial(db *gorm.DB, touristID uint) (string, error) {
	year := time.Now().Year()
	suffix := fmt.Sprintf("%04d", touristID%10000)
	for i := 0; i < cardSerialMaxAttempts; i++ {
		candidate := fmt.Sprintf("DID-%d-%s-%06d", year, suffix, rand.Intn(1000000))
		var count int64
		if err := db.Model(&DigitalIDCard{}).Where("serial = ?", candidate).Count(&count).Error; err != nil {
			return "", wrapStoreErr(err, "digital id card")
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", tgerrors.DuplicateKey("digital id serial")
}

// ensureTourist 查找主体对应的游客档案；不存在时合成占位档案，
// 护照号冲突通过带随机后缀的重新生成兜底，不向调用方抛重复键
func ensureTourist(db *gorm.DB, actor Actor, input IssueDigitalIDInput) (*Tourist, error) {
	tourist, err := GetTouristByAccount(db, actor.ID)
	if err == nil {
		return tourist, nil
	}
	if !tgerrors.IsCode(err, tgerrors.CodeNotFound) {
		return nil, err
	}

	name := input.Name
	if name == "" {
		name = "Tourist " + actor.ID
	}
	passport := input.DocumentNumber
	for i := 0; i < passportMaxAttempts; i++ {
		var count int64
		if err := db.Model(&Tourist{}).Where("passport_number = ?", passport).Count(&count).Error; err != nil {
			return nil, wrapStoreErr(err, "tourist")
		}
		if count == 0 {
			return CreateTourist(db, &Tourist{
				AccountID:      actor.ID,
				Name:           name,
				PassportNumber: passport,
			})
		}
		passport = fmt.Sprintf("%s-%04d", input.DocumentNumber, rand.Intn(10000))
	}
	return nil, tgerrors.DuplicateKey("passport number")
}

// IssueDigitalID 签发数字身份证：生成唯一序列号、二维码负载与内容指纹，
// 追加进卡片历史并刷新游客的"当前证件"缓存
func IssueDigitalID(db *gorm.DB, actor Actor, input IssueDigitalIDInput) (*DigitalIDCard, error) {
	if input.DocumentType == "" || input.DocumentNumber == "" {
		return nil, tgerrors.WithCode(tgerrors.CodeInvalid, "document type and number are required")
	}
	if input.ValidDays <= 0 {
		input.ValidDays = DefaultCardValidDays
	}

	tourist, err := ensureTourist(db, actor, input)
	if err != nil {
		return nil, err
	}

	unlock := idLocks.Lock(uintString(tourist.ID))
	defer unlock()

	var version int64
	if err := db.Model(&DigitalIDCard{}).Where("tourist_id = ?", tourist.ID).Count(&version).Error; err != nil {
		return nil, wrapStoreErr(err, "digital id card")
	}

	// 同一游客的签发已由 idLocks 串行化，序列号冲突只会来自
	// 其他游客的并发签发撞号，插入失败换号重试
	for attempt := 0; attempt < cardSerialMaxAttempts; attempt++ {
		serial, err := generateCardSerial(db, tourist.ID)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		expiresAt := now.AddDate(0, 0, input.ValidDays)
		payload, err := json.Marshal(QRCardPayload{
			Serial:    serial,
			TouristID: tourist.ID,
			Name:      tourist.Name,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return nil, tgerrors.Wrap(err, "marshal qr payload")
		}
		digest := sha256.Sum256(append([]byte(serial), payload...))

		card := &DigitalIDCard{
			Serial:         serial,
			TouristID:      tourist.ID,
			Version:        int(version) + 1,
			DocumentType:   input.DocumentType,
			DocumentNumber: input.DocumentNumber,
			PhotoRef:       input.PhotoRef,
			QRPayload:      string(payload),
			QRPayloadHash:  hex.EncodeToString(digest[:]),
			IssuedAt:       now,
			ExpiresAt:      expiresAt,
			Status:         CardStatusActive,
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(card).Error; err != nil {
				return err
			}
			// 当前证件缓存只是派生视图，卡片历史才是事实来源
			return tx.Model(&Tourist{}).Where("id = ?", tourist.ID).
				Update("current_card_serial", serial).Error
		})
		if err == nil {
			util.Sig().Emit(SigDigitalIDIssued, card)
			return card, nil
		}
		if isDuplicateKeyErr(err) {
			continue
		}
		return nil, wrapStoreErr(err, "digital id card")
	}
	return nil, tgerrors.DuplicateKey("digital id serial")
}

// GetDigitalIDCard 按序列号获取
func GetDigitalIDCard(db *gorm.DB, serial string) (*DigitalIDCard, error) {
	var card DigitalIDCard
	if err := db.Where("serial = ?", serial).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tgerrors.NotFound("digital id card", serial)
		}
		return nil, wrapStoreErr(err, "digital id card")
	}
	return &card, nil
}

// ListDigitalIDCards 游客的卡片历史（签发顺序）
func ListDigitalIDCards(db *gorm.DB, touristID uint) ([]DigitalIDCard, error) {
	var cards []DigitalIDCard
	err := db.Where("tourist_id = ?", touristID).Order("version ASC").Find(&cards).Error
	if err != nil {
		return nil, wrapStoreErr(err, "digital id card")
	}
	return cards, nil
}

// CurrentDigitalID 当前有效证件：最新一张未过期的卡（读穿派生，不独立可写）
func CurrentDigitalID(db *gorm.DB, touristID uint) (*DigitalIDCard, error) {
	var card DigitalIDCard
	err := db.Where("tourist_id = ? AND expires_at > ?", touristID, time.Now()).
		Order("version DESC").First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tgerrors.NotFound("digital id card", uintString(touristID))
		}
		return nil, wrapStoreErr(err, "digital id card")
	}
	return &card, nil
}

// ModifyDigitalIDCard 按序列号修改已签发的卡——永远失败。
// 更正必须走签发新卡
func ModifyDigitalIDCard(db *gorm.DB, serial string) error {
	if _, err := GetDigitalIDCard(db, serial); err != nil {
		return err
	}
	return tgerrors.Forbidden(
		fmt.Sprintf("digital id card %s is immutable; issue a new card instead", serial))
}
