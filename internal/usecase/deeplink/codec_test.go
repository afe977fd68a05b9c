package deeplink

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"clinicase-bot/internal/domain"
)

const fallback int64 = -1003058530208

func TestDecodeExamples(t *testing.T) {
	codec := NewCodec(fallback)

	ref, err := codec.Decode("p_clinicase_71-72")
	require.NoError(t, err)
	require.Equal(t, domain.ChannelByHandle("clinicase"), ref.Source)
	require.Equal(t, []int{71, 72}, ref.MessageIDs)
	require.Equal(t, domain.CompanionPlain, ref.Style)

	ref, err = codec.Decode("n_c_1234567890_71")
	require.NoError(t, err)
	require.Equal(t, domain.ChannelByID(-1001234567890), ref.Source)
	require.Equal(t, []int{71}, ref.MessageIDs)
	require.Equal(t, domain.CompanionPlain, ref.Style)
}

func TestDecodeFallbackForms(t *testing.T) {
	codec := NewCodec(fallback)
	for _, token := range []string{"30", "j_30", "just_30", "jst_30"} {
		ref, err := codec.Decode(token)
		require.NoError(t, err, token)
		require.Equal(t, domain.ChannelByID(fallback), ref.Source, token)
		require.Equal(t, []int{30}, ref.MessageIDs, token)
		require.Equal(t, domain.CompanionJoke, ref.Style, token)
	}

	ref, err := codec.Decode("n_30")
	require.NoError(t, err)
	require.Equal(t, domain.CompanionPlain, ref.Style)
}

func TestDecodeLegacyDeliveryForms(t *testing.T) {
	codec := NewCodec(fallback)

	ref, err := codec.Decode("d_c_2679848195-22")
	require.NoError(t, err)
	require.Equal(t, domain.ChannelByID(-1002679848195), ref.Source)
	require.Equal(t, []int{22}, ref.MessageIDs)
	require.Equal(t, domain.CompanionPlain, ref.Style)

	ref, err = codec.Decode("d_p_my_channel-22")
	require.NoError(t, err)
	require.Equal(t, domain.ChannelByHandle("my_channel"), ref.Source)
	require.Equal(t, domain.CompanionPlain, ref.Style)

	ref, err = codec.Decode("p_clinicase-9")
	require.NoError(t, err)
	require.Equal(t, domain.ChannelByHandle("clinicase"), ref.Source)
	require.Equal(t, []int{9}, ref.MessageIDs)
}

func TestDecodeHandleWithUnderscore(t *testing.T) {
	ref, err := NewCodec(fallback).Decode("p_case_bank_1-2-3")
	require.NoError(t, err)
	require.Equal(t, "case_bank", ref.Source.Handle)
	require.Equal(t, []int{1, 2, 3}, ref.MessageIDs)
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]ErrorKind{
		"":                       UnrecognizedFormat,
		"hello":                  UnrecognizedFormat,
		"p_":                     UnrecognizedFormat,
		"p__71":                  UnrecognizedFormat,
		"x_clinicase_71":         UnrecognizedFormat,
		"p_abc_1":                UnrecognizedFormat,
		"d_p_abcd-3":             UnrecognizedFormat,
		"p_clinicase_7a":         MalformedID,
		"p_clinicase_":           MalformedID,
		"p_clinicase_1--2":       MalformedID,
		"c_12ab_5":               MalformedID,
		"j_abc":                  MalformedID,
		"0":                      MalformedID,
		"j_99999999999999999999": MalformedID,
	}
	codec := NewCodec(fallback)
	for token, kind := range cases {
		_, err := codec.Decode(token)
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr), "токен %q", token)
		require.Equal(t, kind, decodeErr.Kind, "токен %q", token)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	codec := NewCodec(fallback)
	refs := []domain.ContentReference{
		{Source: domain.ChannelByID(fallback), MessageIDs: []int{5}, Style: domain.CompanionJoke},
		{Source: domain.ChannelByID(fallback), MessageIDs: []int{5, 6}, Style: domain.CompanionPlain},
		{Source: domain.ChannelByHandle("clinicase"), MessageIDs: []int{71, 72}, Style: domain.CompanionPlain},
		{Source: domain.ChannelByHandle("case_bank"), MessageIDs: []int{3, 1, 2}, Style: domain.CompanionJoke},
		{Source: domain.ChannelByID(-1001234567890), MessageIDs: []int{71}, Style: domain.CompanionPlain},
		{Source: domain.ChannelByID(-1001234567890), MessageIDs: []int{9, 8}, Style: domain.CompanionJoke},
	}
	for _, ref := range refs {
		token, err := codec.Encode(ref)
		require.NoError(t, err)
		require.LessOrEqual(t, len(token), MaxTokenLength)
		require.Regexp(t, `^[A-Za-z0-9_-]+$`, token)

		decoded, err := codec.Decode(token)
		require.NoError(t, err, token)
		require.True(t, ref.Equal(decoded), "токен %q: %+v != %+v", token, ref, decoded)
	}
}

func TestEncodeCanonicalForms(t *testing.T) {
	codec := NewCodec(fallback)

	token, err := codec.Encode(domain.ContentReference{Source: domain.ChannelByID(fallback), MessageIDs: []int{22}})
	require.NoError(t, err)
	require.Equal(t, "j_22", token)

	token, err = codec.Encode(domain.ContentReference{Source: domain.ChannelByHandle("clinicase"), MessageIDs: []int{71, 72}, Style: domain.CompanionPlain})
	require.NoError(t, err)
	require.Equal(t, "p_clinicase_71-72", token)
}

func TestEncodeRejects(t *testing.T) {
	codec := NewCodec(fallback)

	_, err := codec.Encode(domain.ContentReference{Source: domain.ChannelByHandle("ok_handle")})
	require.ErrorIs(t, err, ErrUnencodable)

	_, err = codec.Encode(domain.ContentReference{Source: domain.ChannelByID(12345), MessageIDs: []int{1}})
	require.ErrorIs(t, err, ErrUnencodable)

	_, err = codec.Encode(domain.ContentReference{Source: domain.ChannelByHandle("bad-handle"), MessageIDs: []int{1}})
	require.ErrorIs(t, err, ErrUnencodable)

	// короче пяти символов Telegram хэндлы не выдаёт
	_, err = codec.Encode(domain.ContentReference{Source: domain.ChannelByHandle("abc"), MessageIDs: []int{1}})
	require.ErrorIs(t, err, ErrUnencodable)

	ids := make([]int, 20)
	for i := range ids {
		ids[i] = 1000 + i
	}
	_, err = codec.Encode(domain.ContentReference{Source: domain.ChannelByHandle("clinicase"), MessageIDs: ids})
	require.ErrorIs(t, err, ErrTokenTooLong)
}

func TestLink(t *testing.T) {
	link := Link("clinicase_bot", "j_5")
	require.True(t, strings.HasPrefix(link, "https://t.me/clinicase_bot?start="))
	require.True(t, strings.HasSuffix(link, "j_5"))
}
