package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/iliyamo/maintenance-auth/internal/model"
	"github.com/iliyamo/maintenance-auth/internal/repository"
	"github.com/iliyamo/maintenance-auth/internal/utils"
)

// ProfileInput holds the editable profile fields; nil leaves a field as is.
// The email cannot be changed: it is the identity tokens are bound to.
type ProfileInput struct {
	FName      *string `json:"fname"`
	LName      *string `json:"lname"`
	ProfileImg *string `json:"profile_img"`
}

// Profile returns the caller's profile.
func (s *AuthService) Profile(ctx context.Context, identity string) (model.Profile, error) {
	u, err := s.lookup(ctx, identity)
	if err != nil {
		return model.Profile{}, err
	}
	return u.Profile(), nil
}

// UpdateProfile validates and applies in.
func (s *AuthService) UpdateProfile(ctx context.Context, identity string, in ProfileInput) (model.Profile, error) {
	u, err := s.lookup(ctx, identity)
	if err != nil {
		return model.Profile{}, err
	}
	invalid := map[string]string{}
	if in.FName != nil {
		if err := utils.ValidateName("fname", *in.FName); err != nil {
			invalid["fname"] = err.Error()
		} else {
			u.FName = utils.NormalizeName(*in.FName)
		}
	}
	if in.LName != nil {
		if err := utils.ValidateName("lname", *in.LName); err != nil {
			invalid["lname"] = err.Error()
		} else {
			u.LName = utils.NormalizeName(*in.LName)
		}
	}
	if in.ProfileImg != nil {
		img := strings.TrimSpace(*in.ProfileImg)
		if img != "" {
			if parsed, err := url.ParseRequestURI(img); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				invalid["profile_img"] = "profile_img must be an http(s) URL"
			}
		}
		u.ProfileImg = img
	}
	if len(invalid) > 0 {
		e := validation("invalid profile data")
		e.Data = map[string]any{"invalid": invalid}
		return model.Profile{}, e
	}

	if err := s.users.UpdateProfile(ctx, u.Email, u.FName, u.LName, u.ProfileImg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Profile{}, newError(KindNotFound, err, "user not found")
		}
		return model.Profile{}, storage(err)
	}
	return u.Profile(), nil
}
