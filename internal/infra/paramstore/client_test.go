package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out    *ssm.GetParameterOutput
	err    error
	lastIn *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.out, f.err
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "/relay")
	require.Error(t, err)
}

func TestGetParameter_PrefixAndDecryption(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String("sk-123")}}}
	c, err := New(api, "/relay/prod/")
	require.NoError(t, err)

	v, err := c.GetParameter(context.Background(), "openai-api-key")
	require.NoError(t, err)
	require.Equal(t, "sk-123", v)
	require.Equal(t, "/relay/prod/openai-api-key", aws.ToString(api.lastIn.Name))
	require.True(t, aws.ToBool(api.lastIn.WithDecryption))
}

func TestGetParameter_Errors(t *testing.T) {
	c, _ := New(&fakeSSM{err: errors.New("boom")}, "")
	_, err := c.GetParameter(context.Background(), "x")
	require.ErrorContains(t, err, "boom")

	c, _ = New(&fakeSSM{out: &ssm.GetParameterOutput{}}, "")
	_, err = c.GetParameter(context.Background(), "x")
	require.ErrorContains(t, err, "no value")

	_, err = c.GetParameter(context.Background(), "  ")
	require.Error(t, err)
}
