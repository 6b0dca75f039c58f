package mock_test

import "github.com/Ratio1/odata_sdk_go/pkg/apierrors"

func intp(n int) *int { return &n }

func connStatus(err error) int { return apierrors.StatusCode(err) }
