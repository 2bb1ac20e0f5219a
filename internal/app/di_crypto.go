package app

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	cryptoRepository "github.com/allisson/credvault/internal/crypto/repository"
	cryptoService "github.com/allisson/credvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/credvault/internal/crypto/usecase"
	"github.com/allisson/credvault/internal/database"
)

// KMSService returns the KMS service used to unwrap encryption keys.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KeyLoader returns the loader of the configured encryption keys.
func (c *Container) KeyLoader() (*cryptoService.KeyLoader, error) {
	var err error
	c.keyLoaderInit.Do(func() {
		c.keyLoader, err = c.initKeyLoader()
		if err != nil {
			c.initErrors["keyLoader"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyLoader"]; exists {
		return nil, storedErr
	}
	return c.keyLoader, nil
}

// CipherService returns the cipher service. It reconnects through the key
// loader after a failed operation.
func (c *Container) CipherService() (cryptoService.CipherService, error) {
	var err error
	c.cipherServiceInit.Do(func() {
		var loader *cryptoService.KeyLoader
		loader, err = c.KeyLoader()
		if err != nil {
			c.initErrors["cipherService"] = err
			return
		}
		c.cipherService = cryptoService.NewCipherService(c.AEADManager(), loader, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cipherService"]; exists {
		return nil, storedErr
	}
	return c.cipherService, nil
}

// Encryptor returns the encrypted field service.
func (c *Container) Encryptor() (cryptoService.Encryptor, error) {
	var err error
	c.encryptorInit.Do(func() {
		var cipher cryptoService.CipherService
		cipher, err = c.CipherService()
		if err != nil {
			c.initErrors["encryptor"] = err
			return
		}
		c.encryptor = cryptoService.NewEncryptor(cipher)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["encryptor"]; exists {
		return nil, storedErr
	}
	return c.encryptor, nil
}

// CanaryRepository returns the canary repository based on database driver.
func (c *Container) CanaryRepository() (cryptoUseCase.CanaryRepository, error) {
	var err error
	c.canaryRepoInit.Do(func() {
		c.canaryRepo, err = c.initCanaryRepository()
		if err != nil {
			c.initErrors["canaryRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["canaryRepo"]; exists {
		return nil, storedErr
	}
	return c.canaryRepo, nil
}

// KeyRingUseCase returns the canary validator that binds configured keys to
// stored key ids.
func (c *Container) KeyRingUseCase() (cryptoUseCase.KeyRingUseCase, error) {
	var err error
	c.keyRingUseCaseInit.Do(func() {
		c.keyRingUseCase, err = c.initKeyRingUseCase()
		if err != nil {
			c.initErrors["keyRingUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRingUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyRingUseCase, nil
}

func (c *Container) initKeyLoader() (*cryptoService.KeyLoader, error) {
	algorithm, err := cryptoDomain.ParseAlgorithm(c.config.EncryptionAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to parse encryption algorithm: %w", err)
	}

	if c.config.KMSKeyURI != "" {
		c.Logger().Info("encryption keys are wrapped by a KMS",
			slog.String("kms_provider", c.config.KMSProvider),
			slog.String("algorithm", string(algorithm)),
		)
	}

	return cryptoService.NewKeyLoader(cryptoService.KeyLoaderConfig{
		Keys:      c.config.EncryptionKeys,
		ActiveKey: c.config.ActiveEncryptionKey,
		Algorithm: algorithm,
		KMSKeyURI: c.config.KMSKeyURI,
	}, c.KMSService(), c.Logger()), nil
}

func (c *Container) initCanaryRepository() (cryptoUseCase.CanaryRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for canary repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return cryptoRepository.NewPostgreSQLCanaryRepository(db), nil
	case database.DriverMySQL:
		return cryptoRepository.NewMySQLCanaryRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initKeyRingUseCase loads the configured keys with fail-fast validation.
func (c *Container) initKeyRingUseCase() (cryptoUseCase.KeyRingUseCase, error) {
	loader, err := c.KeyLoader()
	if err != nil {
		return nil, err
	}

	keys, err := loader.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load encryption keys: %w", err)
	}

	canaryRepo, err := c.CanaryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get canary repository for key ring: %w", err)
	}

	return cryptoUseCase.NewKeyRingUseCase(canaryRepo, c.AEADManager(), keys, c.Logger()), nil
}
