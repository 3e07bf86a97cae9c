package launcher

import (
	"encoding/json"
	"errors"
	"time"
)

type OfflineAuthentication struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
}

type MsaAuthentication struct {
	Username          string `json:"username"`
	UUID              string `json:"uuid"`
	MojToken          string `json:"moj_token"`
	MojExpirationDate int64  `json:"moj_expiration_date"`
	MsaAccessToken    string `json:"msa_access_token"`
	MsaRefreshToken   string `json:"msa_refresh_token"`
	MsaExpirationDate int64  `json:"msa_expiration_date"`
}

func (a *MsaAuthentication) ExpiredMsa(now time.Time) bool {
	return now.UnixMilli() > a.MsaExpirationDate
}

func (a *MsaAuthentication) ExpiredMojang(now time.Time) bool {
	return now.UnixMilli() > a.MojExpirationDate
}

var ErrEmptyAuthentication = errors.New("authentication has no variant")

// Authentication holds exactly one of the two identities. On the wire it is
// untagged; an object carrying moj_token is an online identity.
type Authentication struct {
	Offline *OfflineAuthentication
	Msa     *MsaAuthentication
}

func NewOfflineAuthentication(username, uuid string) *Authentication {
	return &Authentication{
		Offline: &OfflineAuthentication{
			Username: username,
			UUID:     uuid,
		},
	}
}

func NewMsaAuthentication(msa MsaAuthentication) *Authentication {
	return &Authentication{Msa: &msa}
}

func (a *Authentication) Username() string {
	switch {
	case a == nil:
		return ""
	case a.Msa != nil:
		return a.Msa.Username
	case a.Offline != nil:
		return a.Offline.Username
	}
	return ""
}

func (a *Authentication) UUID() string {
	switch {
	case a == nil:
		return ""
	case a.Msa != nil:
		return a.Msa.UUID
	case a.Offline != nil:
		return a.Offline.UUID
	}
	return ""
}

func (a *Authentication) IsOnline() bool {
	return a != nil && a.Msa != nil
}

func (a *Authentication) Clone() *Authentication {
	if a == nil {
		return nil
	}
	result := &Authentication{}
	if a.Offline != nil {
		offline := *a.Offline
		result.Offline = &offline
	}
	if a.Msa != nil {
		msa := *a.Msa
		result.Msa = &msa
	}
	return result
}

func (a Authentication) MarshalJSON() ([]byte, error) {
	switch {
	case a.Msa != nil:
		return json.Marshal(a.Msa)
	case a.Offline != nil:
		return json.Marshal(a.Offline)
	}
	return nil, ErrEmptyAuthentication
}

func (a *Authentication) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	*a = Authentication{}
	if _, ok := probe["moj_token"]; ok {
		var msa MsaAuthentication
		if err := json.Unmarshal(data, &msa); err != nil {
			return err
		}
		a.Msa = &msa
		return nil
	}

	var offline OfflineAuthentication
	if err := json.Unmarshal(data, &offline); err != nil {
		return err
	}
	a.Offline = &offline
	return nil
}
