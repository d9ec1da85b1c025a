package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out  *ssm.GetParameterOutput
	err  error
	seen *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.seen = in
	return f.out, f.err
}

func withValue(v string) *fakeSSM {
	return &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: ptr("p"), Value: ptr(v)}}}
}

func TestGet_DecryptsAndTrims(t *testing.T) {
	api := withValue("123456:ABC-token\n")
	c, err := New(api)
	require.NoError(t, err)

	v, err := c.Get(context.Background(), " /pricewatch/telegram-token ")
	require.NoError(t, err)
	require.Equal(t, "123456:ABC-token", v)
	require.Equal(t, "/pricewatch/telegram-token", *api.seen.Name)
	require.True(t, *api.seen.WithDecryption)
}

func TestGet_Errors(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	c, _ := New(&fakeSSM{err: errors.New("AccessDenied")})
	_, err = c.Get(context.Background(), "p")
	require.ErrorContains(t, err, "AccessDenied")

	c, _ = New(&fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: ptr("p")}}})
	_, err = c.Get(context.Background(), "p")
	require.ErrorContains(t, err, "no value")

	_, err = c.Get(context.Background(), "  ")
	require.ErrorContains(t, err, "required")
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	opened := 0
	open := func(context.Context) (*Client, error) {
		opened++
		return New(withValue("from-ssm"))
	}

	v, err := Resolve(ctx, "from-env", "/p", open)
	require.NoError(t, err)
	require.Equal(t, "from-env", v)
	require.Zero(t, opened)

	v, err = Resolve(ctx, "", "/p", open)
	require.NoError(t, err)
	require.Equal(t, "from-ssm", v)
	require.Equal(t, 1, opened)

	_, err = Resolve(ctx, "", "", open)
	require.Error(t, err)
}
