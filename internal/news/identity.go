package news

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrNoURL возвращается, когда у статьи нет ссылки и её нельзя идентифицировать.
var ErrNoURL = errors.New("article has no url")

// Identity - md5 от канонической ссылки статьи в виде 32 hex-символов.
// MD5 выбран ради совместимости с уже существующими файлами журнала.
type Identity string

// ComputeIdentity вычисляет идентификатор статьи по её URL.
// Заголовок и текст не участвуют: одна ссылка - одна статья.
func ComputeIdentity(article Article) (Identity, error) {
	if strings.TrimSpace(article.URL) == "" {
		return "", ErrNoURL
	}
	sum := md5.Sum([]byte(article.URL))
	return Identity(hex.EncodeToString(sum[:])), nil
}
