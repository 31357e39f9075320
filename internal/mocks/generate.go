package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/observation --output domain/observation --outpkg observationmock --filename repository_mock.go
